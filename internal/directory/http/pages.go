package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// render writes page and turns a template failure into a 500.
func (r *Router) render(w http.ResponseWriter, req *http.Request, status int, name string, p view.Page) {
	if s, ok := sessionFrom(req.Context()); ok {
		p.Identity = s.Identity
		if p.Name == "" {
			p.Name = s.Identity.DisplayName()
		}
	}

	if err := r.Views.HTML(w, status, name, p); err != nil {
		slogx.FromContext(req.Context()).Error("render failed", slog.String("page", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.Home, view.Page{})
}

func (r *Router) handleLoginForm(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.Login, view.Page{
		Title:        "Log in",
		ProviderName: r.providerName(),
	})
}

func (r *Router) handleRegisterForm(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.Register, view.Page{
		Title:        "Register",
		ProviderName: r.providerName(),
	})
}

func (r *Router) handleSecrets(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.Secrets, view.Page{Title: "Home"})
}

func (r *Router) handlePerson(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.Person, view.Page{Title: "People"})
}

func (r *Router) handleMyProfile(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, http.StatusOK, view.MyProfile, view.Page{Title: "My profile"})
}

func (r *Router) handleEditDetails(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())
	r.render(w, req, http.StatusOK, view.EditDetails, view.Page{
		Title:   "Edit details",
		Profile: s.Identity.Profile,
	})
}
