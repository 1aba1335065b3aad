package http

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/pkg/jwtx"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// handleProviderBegin starts the authorization code flow. State and the
// PKCE verifier ride along in a signed cookie scoped to /auth/provider.
func (r *Router) handleProviderBegin(w http.ResponseWriter, req *http.Request) {
	login, err := r.Federated.Begin(nil)
	if err != nil {
		slogx.FromContext(req.Context()).Error("federated begin failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	claims := jwtx.NewFlowClaims(login.State, login.Verifier, r.FlowSigner.Issuer(), jwtx.DefaultFlowTTL, time.Now())
	signed, err := r.FlowSigner.Sign(claims)
	if err != nil {
		slogx.FromContext(req.Context()).Error("flow cookie signing failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.setFlowCookie(w, signed, jwtx.DefaultFlowTTL)
	http.Redirect(w, req, login.URL, http.StatusFound)
}

// handleProviderCallback finishes the flow. Every failure other than an
// unavailable store sends the browser back to /login.
func (r *Router) handleProviderCallback(w http.ResponseWriter, req *http.Request) {
	l := slogx.FromContext(req.Context())
	q := req.URL.Query()

	flow, ok := r.readFlow(w, req)
	if !ok {
		redirectToLogin(w, req)
		return
	}

	if e := q.Get("error"); e != "" {
		l.Info("provider denied sign-in", slog.String("provider_error", e))
		redirectToLogin(w, req)
		return
	}

	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(flow.State)) != 1 {
		l.Warn("federated state mismatch")
		redirectToLogin(w, req)
		return
	}

	_, token, err := r.Federated.SignIn(req.Context(), q.Get("code"), flow.Verifier, sessionMeta(req))
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		l.Error("federated sign-in failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	case err != nil:
		redirectToLogin(w, req)
		return
	}

	r.setSessionCookie(w, token)
	http.Redirect(w, req, "/secrets", http.StatusSeeOther)
}

// readFlow verifies and consumes the flow cookie.
func (r *Router) readFlow(w http.ResponseWriter, req *http.Request) (*jwtx.FlowClaims, bool) {
	c, err := req.Cookie(FlowCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	r.clearFlowCookie(w)

	claims, err := r.FlowSigner.Verify(c.Value)
	if err != nil {
		slogx.FromContext(req.Context()).Info("flow cookie rejected", slog.Any("error", err))
		return nil, false
	}
	return claims, true
}
