package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrExpired   = errors.New("jwtx: token expired")
	ErrIssuer    = errors.New("jwtx: issuer mismatch")
	ErrWeakKey   = errors.New("jwtx: signing key must be at least 32 bytes")
)

// FlowSigner signs and verifies FlowClaims with a shared HMAC key.
type FlowSigner struct {
	key    []byte
	issuer string
	leeway time.Duration
}

// NewFlowSigner returns an HS256 signer. The key must be at least 32 bytes.
func NewFlowSigner(key []byte, issuer string) (*FlowSigner, error) {
	if len(key) < 32 {
		return nil, ErrWeakKey
	}
	return &FlowSigner{key: key, issuer: issuer, leeway: 30 * time.Second}, nil
}

func (s *FlowSigner) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Issuer is the "iss" value Verify expects.
func (s *FlowSigner) Issuer() string { return s.issuer }

// Sign serialises c as a compact JWS.
func (s *FlowSigner) Sign(c FlowClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses tokenStr, checks its signature, expiry and issuer, and
// returns the claims.
func (s *FlowSigner) Verify(tokenStr string) (*FlowClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)

	token, err := parser.ParseWithClaims(tokenStr, &FlowClaims{}, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*FlowClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrIssuer
	}

	return claims, nil
}
