package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/store"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/aussiebroadwan/directory/pkg/idx"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// DefaultSessionTTL applies when SessionService.TTL is unset.
const DefaultSessionTTL = 24 * time.Hour

const maxSessionMetaLen = 255

// SessionMeta describes the client a session was issued to.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// SessionService issues opaque session tokens and resolves them back to an
// identity. Only the token fingerprint and the user id are stored.
type SessionService struct {
	Store   store.Store
	TTL     time.Duration
	Metrics *metrics.Metrics

	now func() time.Time
}

func (s *SessionService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

// Establish creates a session for identity and returns the raw token to
// hand to the client.
func (s *SessionService) Establish(ctx context.Context, identity domain.Identity, meta SessionMeta) (string, error) {
	if identity.ID == "" {
		return "", ErrInvalidRequest
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := s.clock()
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		TokenHash: cryptox.FingerprintToken(token),
		UserID:    identity.ID,
		UserAgent: clip(meta.UserAgent, maxSessionMetaLen),
		IPAddress: clip(meta.IPAddress, maxSessionMetaLen),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", storeErr("create session", err)
	}

	s.Metrics.SessionEstablished()
	slogx.FromContext(ctx).Info("session established",
		"user_id", identity.ID,
		"session_id", sess.ID,
	)
	return token, nil
}

// Resolve looks up the session for token and re-reads its identity from the
// store. Unknown or expired tokens yield ErrNoSession; a session whose
// identity no longer exists yields ErrNotFound.
func (s *SessionService) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrNoSession
	}

	tokenHash := cryptox.FingerprintToken(token)
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrNoSession
		}
		return domain.Identity{}, storeErr("get session", err)
	}

	if sess.Expired(s.clock()) {
		if err := s.Store.Sessions().DeleteSessionByTokenHash(ctx, tokenHash); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired session", "error", err)
		}
		return domain.Identity{}, ErrNoSession
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if err := s.Store.Sessions().DeleteSessionsForUser(ctx, sess.UserID); err != nil {
				slogx.FromContext(ctx).Warn("failed to delete orphaned sessions", "error", err)
			}
			return domain.Identity{}, ErrNotFound
		}
		return domain.Identity{}, storeErr("get user", err)
	}

	return u.Identity(), nil
}

// Destroy ends the session for token. Unknown tokens are not an error.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.Store.Sessions().DeleteSessionByTokenHash(ctx, cryptox.FingerprintToken(token)); err != nil {
		return storeErr("delete session", err)
	}

	s.Metrics.SessionDestroyed()
	return nil
}

// DeleteExpired removes every session past its expiry.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.Store.Sessions().DeleteExpiredSessions(ctx, s.clock())
	if err != nil {
		return 0, storeErr("delete expired sessions", err)
	}
	s.Metrics.ExpiredSessionsDeleted(n)
	return n, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
