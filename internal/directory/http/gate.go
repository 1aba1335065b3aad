package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/pkg/httpx"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// RequireSession resolves the session cookie on every request and hands the
// identity to next. Anonymous requests are redirected to /login; a request
// without a cookie never reaches the store.
func (r *Router) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := req.Cookie(SessionCookieName)
		if err != nil || c.Value == "" {
			redirectToLogin(w, req)
			return
		}

		identity, err := r.Sessions.Resolve(req.Context(), c.Value)
		switch {
		case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrNotFound):
			r.clearSessionCookie(w)
			redirectToLogin(w, req)
			return
		case err != nil:
			slogx.FromContext(req.Context()).Error("session resolve failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		httpx.NoCache(w)
		ctx := withSession(req.Context(), session{Identity: identity, Token: c.Value})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func redirectToLogin(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, "/login", http.StatusSeeOther)
}

func sessionMeta(req *http.Request) service.SessionMeta {
	return service.SessionMeta{
		UserAgent: req.UserAgent(),
		IPAddress: httpx.GetRemoteIP(req),
	}
}
