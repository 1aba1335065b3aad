package dirsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/directory/pkg/dirsdk"
	"github.com/aussiebroadwan/directory/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func fakeDirectory(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("password") != "p@ss" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "directory_session", Value: "tok", Path: "/"})
		http.Redirect(w, r, "/secrets", http.StatusSeeOther)
	})
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	mux.HandleFunc("GET /autocomplete", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("directory_session"); err != nil || c.Value != "tok" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, []dirsdk.PersonSuggestion{{ID: "1", Label: r.URL.Query().Get("term")}})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, dirsdk.HealthResponse{Status: "ok", Checks: &dirsdk.HealthChecks{Database: "ok"}})
	})
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		dirsdk.ErrServerError.WriteError(w)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SessionCookieIsKept(t *testing.T) {
	ctx := context.Background()
	c := dirsdk.NewClient(fakeDirectory(t).URL + "/")

	_, err := c.Autocomplete(ctx, "al")
	require.ErrorIs(t, err, dirsdk.ErrNotAuthenticated)

	require.ErrorIs(t, c.Login(ctx, "alice", "wrong"), dirsdk.ErrInvalidCredentials)
	require.NoError(t, c.Login(ctx, "alice", "p@ss"))

	people, err := c.Autocomplete(ctx, "al")
	require.NoError(t, err)
	require.Equal(t, []dirsdk.PersonSuggestion{{ID: "1", Label: "al"}}, people)
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := dirsdk.NewClient(fakeDirectory(t).URL)

	require.ErrorIs(t, c.Register(ctx, "alice", "p@ss", "Alice"), dirsdk.ErrUsernameTaken)

	_, err := c.Page(ctx, "/boom")
	var apiErr *dirsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, dirsdk.ErrorCodeServerError, apiErr.Code)

	health, err := c.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Checks.Database)
}
