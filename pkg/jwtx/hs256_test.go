package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/directory/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestNewFlowSigner_RejectsShortKey(t *testing.T) {
	_, err := jwtx.NewFlowSigner([]byte("short"), "directory")
	require.ErrorIs(t, err, jwtx.ErrWeakKey)
}

func TestFlowSigner_RoundTrip(t *testing.T) {
	s, err := jwtx.NewFlowSigner(testKey, "directory")
	require.NoError(t, err)
	require.Equal(t, "HS256", s.Alg())

	claims := jwtx.NewFlowClaims("state-1", "verifier-1", "directory", jwtx.DefaultFlowTTL, time.Now())
	tok, err := s.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(tok, "."))

	got, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "state-1", got.State)
	require.Equal(t, "verifier-1", got.Verifier)
	require.NotEmpty(t, got.ID)
}

func TestFlowSigner_Verify(t *testing.T) {
	s, err := jwtx.NewFlowSigner(testKey, "directory")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		c := jwtx.NewFlowClaims("s", "v", "directory", time.Minute, time.Now().Add(-time.Hour))
		tok, err := s.Sign(c)
		require.NoError(t, err)

		_, err = s.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwtx.NewFlowSigner([]byte("ffffffffffffffffffffffffffffffff"), "directory")
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewFlowClaims("s", "v", "directory", time.Minute, time.Now()))
		require.NoError(t, err)

		_, err = s.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := s.Sign(jwtx.NewFlowClaims("s", "v", "someone-else", time.Minute, time.Now()))
		require.NoError(t, err)

		_, err = s.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
