package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultFlowTTL bounds how long a federated sign-in may take between the
// redirect to the provider and the callback.
const DefaultFlowTTL = 10 * time.Minute

// FlowClaims carry the state of an in-flight authorization code exchange.
// They travel in a signed cookie so the server keeps no per-flow state.
type FlowClaims struct {
	jwt.RegisteredClaims

	// State is the anti-CSRF value echoed back by the provider.
	State string `json:"state"`

	// Verifier is the PKCE code verifier for this flow.
	Verifier string `json:"cv"`
}

// NewFlowClaims builds claims that expire ttl after now.
func NewFlowClaims(state, verifier, issuer string, ttl time.Duration, now time.Time) FlowClaims {
	return FlowClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		State:    state,
		Verifier: verifier,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
