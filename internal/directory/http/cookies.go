package http

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "directory_session"
	FlowCookieName    = "directory_oauth_flow"

	flowCookiePath = "/auth/provider"
)

// CookieConfig controls the attributes of cookies the router sets.
type CookieConfig struct {
	Secure bool

	// TTL should match the session lifetime.
	TTL time.Duration
}

func (r *Router) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.Cookies.TTL.Seconds()),
		HttpOnly: true,
		Secure:   r.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) setFlowCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    value,
		Path:     flowCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearFlowCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    "",
		Path:     flowCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
