package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port                 int           `envconfig:"PORT" default:"3000"`
	Env                  string        `envconfig:"ENV" default:"dev"`
	LogLevel             string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat            string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownGracePeriod  time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"10s"`
	HousekeepingInterval time.Duration `envconfig:"HOUSEKEEPING_INTERVAL" default:"1h"`

	DatabaseFile   string `envconfig:"DATABASE_FILE" default:"directory.db"`
	PepperFile     string `envconfig:"PEPPER_FILE" default:"pepper"`
	FlowSigningKey string `envconfig:"FLOW_SIGNING_KEY"` // Optional: random per process when empty

	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieSecure      bool          `envconfig:"COOKIE_SECURE" default:"false"`
	MaxAvatarBytes    int64         `envconfig:"MAX_AVATAR_BYTES" default:"2097152"`
	TrustProxyHeaders bool          `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	// Federated sign-in is only enabled when ClientID is set.
	OAuthProvider    string   `envconfig:"OAUTH_PROVIDER" default:"google"`
	ClientID         string   `envconfig:"CLIENT_ID"`
	ClientSecret     string   `envconfig:"CLIENT_SECRET"`
	OAuthAuthURL     string   `envconfig:"OAUTH_AUTH_URL"`
	OAuthTokenURL    string   `envconfig:"OAUTH_TOKEN_URL"`
	OAuthUserInfoURL string   `envconfig:"OAUTH_USERINFO_URL"`
	OAuthRedirectURL string   `envconfig:"OAUTH_REDIRECT_URL" default:"http://localhost:3000/auth/provider/callback"`
	OAuthScopes      []string `envconfig:"OAUTH_SCOPES" default:"profile"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FederationEnabled reports whether an OAuth2 client is configured.
func (c Config) FederationEnabled() bool { return c.ClientID != "" }

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.MaxAvatarBytes <= 0 {
		return fmt.Errorf("config: MAX_AVATAR_BYTES must be positive")
	}
	if c.FlowSigningKey != "" && len(c.FlowSigningKey) < 32 {
		return fmt.Errorf("config: FLOW_SIGNING_KEY must be at least 32 bytes")
	}
	return nil
}
