// Package provider talks to an external OAuth2 identity provider using the
// authorization code flow with PKCE, then reads the signed-in user's profile
// from the provider's userinfo endpoint.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/service"
	"golang.org/x/oauth2"
)

const maxUserInfoBytes = 1 << 20

// Well known endpoints used when Config leaves them empty.
var knownEndpoints = map[string]struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
}{
	"google": {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.google.com/o/oauth2/auth",
			TokenURL:  "https://oauth2.googleapis.com/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
	},
}

type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string

	// HTTPClient is used for the token and userinfo calls. Defaults to a
	// client with a 10 second timeout.
	HTTPClient *http.Client
}

// OAuth2 implements service.Provider.
type OAuth2 struct {
	name        string
	conf        oauth2.Config
	userInfoURL string
	client      *http.Client
}

var _ service.Provider = (*OAuth2)(nil)

// New validates cfg and fills in endpoints for known provider names.
func New(cfg Config) (*OAuth2, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		return nil, errors.New("provider: name is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("provider: client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("provider: redirect url is required")
	}

	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	userInfoURL := cfg.UserInfoURL

	if known, ok := knownEndpoints[name]; ok {
		if endpoint.AuthURL == "" {
			endpoint.AuthURL = known.endpoint.AuthURL
		}
		if endpoint.TokenURL == "" {
			endpoint.TokenURL = known.endpoint.TokenURL
		}
		endpoint.AuthStyle = known.endpoint.AuthStyle
		if userInfoURL == "" {
			userInfoURL = known.userInfoURL
		}
	}

	if endpoint.AuthURL == "" || endpoint.TokenURL == "" || userInfoURL == "" {
		return nil, fmt.Errorf("provider: %q needs auth, token and userinfo urls", name)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &OAuth2{
		name: name,
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		userInfoURL: userInfoURL,
		client:      client,
	}, nil
}

func (p *OAuth2) Name() string { return p.name }

// AuthCodeURL returns the provider consent URL carrying state and the S256
// challenge for verifier.
func (p *OAuth2) AuthCodeURL(state, verifier string, scopes []string) string {
	conf := p.conf
	if len(scopes) > 0 {
		conf.Scopes = scopes
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for an access token and uses it once to fetch the
// user's profile. The token is discarded afterwards.
func (p *OAuth2) Exchange(ctx context.Context, code, verifier string) (domain.ExternalProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := p.conf.Exchange(ctx, code, opts...)
	if err != nil {
		return domain.ExternalProfile{}, classify("token exchange", err)
	}

	info, err := p.userInfo(ctx, tok)
	if err != nil {
		return domain.ExternalProfile{}, err
	}

	return domain.ExternalProfile{
		Provider:    p.name,
		ExternalID:  info.Sub,
		DisplayName: info.displayName(),
	}, nil
}

type userInfo struct {
	Sub       string `json:"sub"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
}

func (u userInfo) displayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.GivenName
}

func (p *OAuth2) userInfo(ctx context.Context, tok *oauth2.Token) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return userInfo{}, fmt.Errorf("%w: %w", service.ErrProviderUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("%w: userinfo: %w", service.ErrProviderUnreachable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return userInfo{}, fmt.Errorf("%w: userinfo status %d", service.ErrProviderRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return userInfo{}, fmt.Errorf("%w: userinfo status %d", service.ErrProviderUnreachable, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("%w: decode userinfo: %w", service.ErrProviderUnreachable, err)
	}
	if info.Sub == "" {
		return userInfo{}, fmt.Errorf("%w: userinfo has no subject", service.ErrProviderRejected)
	}
	return info, nil
}

// classify maps oauth2 errors onto the service taxonomy. The provider
// answering with a 4xx is a rejection; anything else means we could not get
// a usable answer.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
		return fmt.Errorf("%w: %s: %w", service.ErrProviderRejected, op, err)
	}
	return fmt.Errorf("%w: %s: %w", service.ErrProviderUnreachable, op, err)
}
