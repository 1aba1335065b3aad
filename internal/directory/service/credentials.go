package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/store"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/aussiebroadwan/directory/pkg/slogx"
)

// RegisterRequest is the input to CredentialService.Register.
type RegisterRequest struct {
	Username string
	Password string
	Profile  domain.Profile
	Meta     SessionMeta
}

// CredentialService verifies local username/password pairs and registers
// new local identities.
type CredentialService struct {
	Store      store.Store
	Identities *IdentityService
	Sessions   *SessionService
	Metrics    *metrics.Metrics
}

// Verify checks password against the stored hash for username. Unknown
// users and wrong passwords both yield ErrInvalidCredentials and take about
// the same time.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)
	username = strings.TrimSpace(username)

	if username == "" || password == "" || len(password) > maxPasswordLen {
		s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeRejected)
		return domain.Identity{}, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cryptox.BurnPasswordCheck(password)
		s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeRejected)
		l.Info("password login failed", slog.String("reason", "unknown_user"))
		return domain.Identity{}, ErrInvalidCredentials
	case err != nil:
		s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeError)
		return domain.Identity{}, storeErr("get user", err)
	}

	// Federated-only accounts have no password to check against.
	if u.PasswordHash == "" {
		cryptox.BurnPasswordCheck(password)
		s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeRejected)
		l.Info("password login failed", slog.String("reason", "no_password"), slog.String("user_id", u.ID))
		return domain.Identity{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeRejected)
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unreadable", slog.String("user_id", u.ID), slog.Any("error", err))
		} else {
			l.Info("password login failed", slog.String("reason", "mismatch"), slog.String("user_id", u.ID))
		}
		return domain.Identity{}, ErrInvalidCredentials
	}

	s.Metrics.AuthAttempt(metrics.MethodPassword, metrics.OutcomeSuccess)
	return u.Identity(), nil
}

// Login verifies the credential and, only on success, establishes a session.
func (s *CredentialService) Login(
	ctx context.Context,
	username, password string,
	meta SessionMeta,
) (domain.Identity, string, error) {
	identity, err := s.Verify(ctx, username, password)
	if err != nil {
		return domain.Identity{}, "", err
	}

	token, err := s.Sessions.Establish(ctx, identity, meta)
	if err != nil {
		return domain.Identity{}, "", err
	}
	return identity, token, nil
}

// Register creates a local identity and signs it in straight away.
func (s *CredentialService) Register(ctx context.Context, req RegisterRequest) (domain.Identity, string, error) {
	identity, err := s.Identities.CreateLocal(ctx, req.Username, req.Password, req.Profile)
	if err != nil {
		outcome := metrics.OutcomeRejected
		if errors.Is(err, ErrStoreUnavailable) {
			outcome = metrics.OutcomeError
		}
		s.Metrics.AuthAttempt(metrics.MethodRegister, outcome)
		return domain.Identity{}, "", err
	}
	s.Metrics.AuthAttempt(metrics.MethodRegister, metrics.OutcomeSuccess)

	slogx.FromContext(ctx).Info("local identity registered", slog.String("user_id", identity.ID))

	token, err := s.Sessions.Establish(ctx, identity, req.Meta)
	if err != nil {
		return identity, "", err
	}
	return identity, token, nil
}
