package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.DatabaseFile = filepath.Join(dir, "directory.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	return cfg
}

func TestNew_WiresRoutes(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	for path, want := range map[string]int{
		"/livez":         http.StatusOK,
		"/readyz":        http.StatusOK,
		"/login":         http.StatusOK,
		"/secrets":       http.StatusSeeOther,
		"/auth/provider": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rec.Code, path)
	}
}

func TestNew_FederationMountsProviderRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/provider", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)

	version, dirty, err := Migrate(cfg)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// second run is a no-op
	again, _, err := Migrate(cfg)
	require.NoError(t, err)
	require.Equal(t, version, again)
}
