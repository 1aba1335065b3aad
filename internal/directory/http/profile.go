package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/aussiebroadwan/directory/pkg/dirsdk"
	"github.com/aussiebroadwan/directory/pkg/httpx"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// handleUpdate applies the edit details form. The avatar part is optional.
func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) {
	l := slogx.FromContext(req.Context())
	s, _ := sessionFrom(req.Context())
	limit := r.maxAvatarBytes()

	req.Body = http.MaxBytesReader(w, req.Body, limit+maxFormBytes)
	err := req.ParseMultipartForm(limit)
	if errors.Is(err, http.ErrNotMultipart) {
		err = req.ParseForm()
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		r.renderEditError(w, req, http.StatusRequestEntityTooLarge, s.Identity.Profile, "That upload is too large.")
		return
	case err != nil:
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	profile := domain.Profile{
		Name:        req.PostForm.Get("name"),
		Company:     req.PostForm.Get("company"),
		Link:        req.PostForm.Get("link"),
		PhoneNumber: req.PostForm.Get("phoneNumber"),
		Address:     req.PostForm.Get("address"),
		DateOfBirth: req.PostForm.Get("dob"),
	}

	avatar, status, msg := readAvatar(req, limit)
	if status != 0 {
		r.renderEditError(w, req, status, profile, msg)
		return
	}

	_, err = r.Identities.UpdateDetails(req.Context(), s.Identity.ID, profile, avatar)
	switch {
	case errors.Is(err, service.ErrUnsupportedAvatar):
		r.renderEditError(w, req, http.StatusUnprocessableEntity, profile,
			"Avatars must be PNG, JPEG, GIF or WebP images.")
		return
	case errors.Is(err, service.ErrInvalidRequest):
		r.renderEditError(w, req, http.StatusUnprocessableEntity, profile,
			"Check the link is a full http(s) address and the date is YYYY-MM-DD.")
		return
	case errors.Is(err, service.ErrNotFound):
		r.clearSessionCookie(w)
		redirectToLogin(w, req)
		return
	case err != nil:
		l.Error("profile update failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, req, "/myProfile", http.StatusSeeOther)
}

// readAvatar returns the uploaded image bytes, or nil when no file was sent.
// A non-zero status rejects the whole form.
func readAvatar(req *http.Request, limit int64) ([]byte, int, string) {
	f, _, err := req.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, 0, ""
	case err != nil:
		return nil, http.StatusBadRequest, "The avatar could not be read."
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, http.StatusBadRequest, "The avatar could not be read."
	}
	if len(data) == 0 {
		return nil, 0, ""
	}
	if int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge, "That upload is too large."
	}
	return data, 0, ""
}

func (r *Router) renderEditError(w http.ResponseWriter, req *http.Request, status int, p domain.Profile, msg string) {
	r.render(w, req, status, view.EditDetails, view.Page{
		Title:   "Edit details",
		Profile: p,
		Error:   msg,
	})
}

func (r *Router) handleAvatar(w http.ResponseWriter, req *http.Request) {
	avatar, err := r.Identities.Avatar(req.Context(), chi.URLParam(req, "id"))
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, req)
		return
	case err != nil:
		slogx.FromContext(req.Context()).Error("avatar lookup failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", avatar.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(avatar.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(avatar.Data)
}

// handleAutocomplete godoc
//
//	@Summary		Search members by name
//	@Description	Case-insensitive substring search over display names, newest members first, at most 20 results
//	@Tags			Directory
//	@Produce		json
//	@Param			term	query		string						false	"Search term"
//	@Success		200		{array}		dirsdk.PersonSuggestion		"matching members"
//	@Failure		303		{string}	string						"redirect to /login without a session"
//	@Failure		429		{string}	string						"rate limited"
//	@Failure		500		{object}	dirsdk.ErrorResponse		"store unavailable"
//	@Security		SessionCookie
//	@Router			/autocomplete [get].
func (r *Router) handleAutocomplete(w http.ResponseWriter, req *http.Request) {
	people, err := r.Identities.Search(req.Context(), req.URL.Query().Get("term"), service.DefaultSearchLimit)
	if err != nil {
		slogx.FromContext(req.Context()).Error("autocomplete failed", slog.Any("error", err))
		dirsdk.ErrServerError.WriteError(w)
		return
	}

	out := make([]dirsdk.PersonSuggestion, 0, len(people))
	for _, p := range people {
		out = append(out, dirsdk.PersonSuggestion{ID: p.ID, Label: p.DisplayName()})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
