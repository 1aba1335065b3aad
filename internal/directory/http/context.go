package http

import (
	"context"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
)

type sessionKey struct{}

// session is what the gate resolved for the current request.
type session struct {
	Identity domain.Identity
	Token    string
}

func withSession(ctx context.Context, s session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom returns the session attached by RequireSession.
func sessionFrom(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(sessionKey{}).(session)
	return s, ok
}

// IdentityFromContext returns the signed-in identity of a gated request.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	s, ok := sessionFrom(ctx)
	return s.Identity, ok
}
