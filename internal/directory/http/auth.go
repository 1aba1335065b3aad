package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// maxFormBytes caps urlencoded credential forms.
const maxFormBytes = 64 << 10

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := req.PostForm.Get("username")

	_, token, err := r.Credentials.Login(req.Context(), username, req.PostForm.Get("password"), sessionMeta(req))
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		r.render(w, req, http.StatusUnauthorized, view.Login, view.Page{
			Title:        "Log in",
			Username:     username,
			Error:        "Invalid username or password.",
			ProviderName: r.providerName(),
		})
		return
	case err != nil:
		slogx.FromContext(req.Context()).Error("login failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.setSessionCookie(w, token)
	http.Redirect(w, req, "/secrets", http.StatusSeeOther)
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	username := req.PostForm.Get("username")
	profile := domain.Profile{Name: req.PostForm.Get("name")}

	_, token, err := r.Credentials.Register(req.Context(), service.RegisterRequest{
		Username: username,
		Password: req.PostForm.Get("password"),
		Profile:  profile,
		Meta:     sessionMeta(req),
	})

	page := view.Page{
		Title:        "Register",
		Username:     username,
		Profile:      profile,
		ProviderName: r.providerName(),
	}
	switch {
	case errors.Is(err, service.ErrDuplicateUsername):
		page.Error = "That username is already taken."
		r.render(w, req, http.StatusConflict, view.Register, page)
		return
	case errors.Is(err, service.ErrInvalidRequest):
		page.Error = "Please check the username, password and name you entered."
		r.render(w, req, http.StatusUnprocessableEntity, view.Register, page)
		return
	case err != nil:
		slogx.FromContext(req.Context()).Error("registration failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.setSessionCookie(w, token)
	http.Redirect(w, req, "/secrets", http.StatusSeeOther)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	if err := r.Sessions.Destroy(req.Context(), s.Token); err != nil {
		slogx.FromContext(req.Context()).Error("logout failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.clearSessionCookie(w)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}
