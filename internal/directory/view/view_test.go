package view_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/stretchr/testify/require"
)

func TestRenderer_AllPages(t *testing.T) {
	r, err := view.New()
	require.NoError(t, err)

	identity := domain.Identity{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Username: "alice", Profile: domain.Profile{Name: "Alice"}}

	for _, name := range []string{
		view.Home, view.Login, view.Register, view.Secrets,
		view.Person, view.MyProfile, view.EditDetails,
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, name, view.Page{Name: "Alice", Identity: identity, Profile: identity.Profile}))
			require.Contains(t, buf.String(), "<!DOCTYPE html>")
			require.Contains(t, buf.String(), "</html>")
		})
	}
}

func TestRenderer_EscapesUserContent(t *testing.T) {
	r, err := view.New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, view.Secrets, view.Page{
		Name:     `<script>alert("x")</script>`,
		Identity: domain.Identity{ID: "id"},
	}))
	require.NotContains(t, buf.String(), `<script>alert("x")</script>`)
	require.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestRenderer_FederatedButton(t *testing.T) {
	r, err := view.New()
	require.NoError(t, err)

	var without, with bytes.Buffer
	require.NoError(t, r.Render(&without, view.Login, view.Page{}))
	require.NoError(t, r.Render(&with, view.Login, view.Page{ProviderName: "google", Error: "Invalid username or password."}))

	require.NotContains(t, without.String(), "/auth/provider")
	require.Contains(t, with.String(), "/auth/provider")
	require.Contains(t, with.String(), "Invalid username or password.")
}

func TestRenderer_HTML(t *testing.T) {
	r, err := view.New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, r.HTML(rec, http.StatusUnprocessableEntity, view.Register, view.Page{Username: "alice"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `value="alice"`)

	require.Error(t, r.HTML(httptest.NewRecorder(), http.StatusOK, "missing", view.Page{}))
}
