package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "directory.db", cfg.DatabaseFile)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, int64(2<<20), cfg.MaxAvatarBytes)
	require.Equal(t, "google", cfg.OAuthProvider)
	require.Equal(t, []string{"profile"}, cfg.OAuthScopes)
	require.False(t, cfg.CookieSecure)
	require.False(t, cfg.TrustProxyHeaders)
	require.False(t, cfg.FederationEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("CLIENT_ID", "client")
	t.Setenv("OAUTH_SCOPES", "openid,profile")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8081, cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.True(t, cfg.CookieSecure)
	require.True(t, cfg.TrustProxyHeaders)
	require.True(t, cfg.FederationEnabled())
	require.Equal(t, []string{"openid", "profile"}, cfg.OAuthScopes)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad port":      {"PORT", "0"},
		"unparseable":   {"SESSION_TTL", "forever"},
		"zero ttl":      {"SESSION_TTL", "0s"},
		"short key":     {"FLOW_SIGNING_KEY", "short"},
		"avatar budget": {"MAX_AVATAR_BYTES", "-1"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(c[0], c[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
