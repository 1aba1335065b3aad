package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/aussiebroadwan/directory/pkg/slogx"
	"golang.org/x/oauth2"
)

// Provider is an OAuth2 identity provider reached with the authorization
// code flow and PKCE. Exchange must fail with ErrProviderRejected or
// ErrProviderUnreachable.
type Provider interface {
	Name() string
	AuthCodeURL(state, verifier string, scopes []string) string
	Exchange(ctx context.Context, code, verifier string) (domain.ExternalProfile, error)
}

// FederatedLogin is a started sign-in. State and Verifier must be kept by
// the caller until the callback arrives.
type FederatedLogin struct {
	URL      string
	State    string
	Verifier string
}

// FederatedService resolves provider sign-ins to local identities.
type FederatedService struct {
	Provider      Provider
	Identities    *IdentityService
	Sessions      *SessionService
	DefaultScopes []string
	Metrics       *metrics.Metrics
}

// Begin builds the provider authorization URL. It touches no storage.
func (s *FederatedService) Begin(scopes []string) (FederatedLogin, error) {
	if len(scopes) == 0 {
		scopes = s.DefaultScopes
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return FederatedLogin{}, err
	}
	verifier := oauth2.GenerateVerifier()

	return FederatedLogin{
		URL:      s.Provider.AuthCodeURL(state, verifier, scopes),
		State:    state,
		Verifier: verifier,
	}, nil
}

// Complete exchanges code for the provider profile and maps it to a local
// identity, creating one on first sight.
func (s *FederatedService) Complete(ctx context.Context, code, verifier string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	if code == "" {
		s.Metrics.AuthAttempt(metrics.MethodFederated, metrics.OutcomeRejected)
		return domain.Identity{}, ErrProviderRejected
	}

	profile, err := s.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		if !errors.Is(err, ErrProviderRejected) && !errors.Is(err, ErrProviderUnreachable) {
			err = fmt.Errorf("%w: %w", ErrProviderUnreachable, err)
		}
		outcome := metrics.OutcomeRejected
		if errors.Is(err, ErrProviderUnreachable) {
			outcome = metrics.OutcomeError
		}
		s.Metrics.AuthAttempt(metrics.MethodFederated, outcome)
		l.Warn("federated exchange failed",
			slog.String("provider", s.Provider.Name()),
			slog.Any("error", err),
		)
		return domain.Identity{}, err
	}

	if profile.ExternalID == "" {
		s.Metrics.AuthAttempt(metrics.MethodFederated, metrics.OutcomeRejected)
		return domain.Identity{}, fmt.Errorf("%w: profile has no subject", ErrProviderRejected)
	}

	provider := profile.Provider
	if provider == "" {
		provider = s.Provider.Name()
	}

	identity, created, err := s.Identities.FindOrCreateFederated(ctx, provider, profile.ExternalID,
		domain.Profile{Name: profile.DisplayName},
	)
	if err != nil {
		s.Metrics.AuthAttempt(metrics.MethodFederated, metrics.OutcomeError)
		return domain.Identity{}, err
	}

	s.Metrics.AuthAttempt(metrics.MethodFederated, metrics.OutcomeSuccess)
	l.Info("federated sign-in resolved",
		slog.String("provider", provider),
		slog.String("user_id", identity.ID),
		slog.Bool("created", created),
	)
	return identity, nil
}

// SignIn completes the exchange and establishes a session for the result.
func (s *FederatedService) SignIn(
	ctx context.Context,
	code, verifier string,
	meta SessionMeta,
) (domain.Identity, string, error) {
	identity, err := s.Complete(ctx, code, verifier)
	if err != nil {
		return domain.Identity{}, "", err
	}

	token, err := s.Sessions.Establish(ctx, identity, meta)
	if err != nil {
		return domain.Identity{}, "", err
	}
	return identity, token, nil
}
