package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/store"
	"github.com/aussiebroadwan/directory/internal/directory/store/drivers/sqlite"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "directory-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fakeProvider struct {
	mu       sync.Mutex
	profile  domain.ExternalProfile
	err      error
	calls    int
	verifier string
}

func (p *fakeProvider) Name() string { return "google" }

func (p *fakeProvider) AuthCodeURL(state, verifier string, scopes []string) string {
	return "https://provider.example/auth?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code, verifier string) (domain.ExternalProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.verifier = verifier
	return p.profile, p.err
}

type testEnv struct {
	store       *sqlite.Store
	metrics     *metrics.Metrics
	identities  *IdentityService
	sessions    *SessionService
	credentials *CredentialService
	federated   *FederatedService
	provider    *fakeProvider
}

func newTestEnv(t *testing.T, dsn string) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	m := metrics.New()
	identities := &IdentityService{Store: s, Metrics: m}
	sessions := &SessionService{Store: s, TTL: time.Hour, Metrics: m}
	provider := &fakeProvider{
		profile: domain.ExternalProfile{Provider: "google", ExternalID: "g-123", DisplayName: "Bob"},
	}

	return &testEnv{
		store:      s,
		metrics:    m,
		identities: identities,
		sessions:   sessions,
		credentials: &CredentialService{
			Store:      s,
			Identities: identities,
			Sessions:   sessions,
			Metrics:    m,
		},
		federated: &FederatedService{
			Provider:      provider,
			Identities:    identities,
			Sessions:      sessions,
			DefaultScopes: []string{"profile"},
			Metrics:       m,
		},
		provider: provider,
	}
}

func (e *testEnv) countUsers(t *testing.T) int {
	t.Helper()
	n, err := e.store.Users().CountUsers(context.Background())
	require.NoError(t, err)
	return n
}

func TestRegister_CreatesLocalIdentityAndSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, token, err := env.credentials.Register(ctx, RegisterRequest{
		Username: "alice",
		Password: "p@ss",
		Profile:  domain.Profile{Name: "Alice"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "alice", identity.Username)
	require.Empty(t, identity.FederatedID)

	stored, err := env.store.Users().GetUserByID(ctx, identity.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.PasswordHash)
	require.NotEqual(t, "p@ss", stored.PasswordHash)
	require.Empty(t, stored.FederatedID)

	resolved, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, identity.ID, resolved.ID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	_, _, err := env.credentials.Register(ctx, RegisterRequest{Username: "alice", Password: "p@ss"})
	require.NoError(t, err)

	_, token, err := env.credentials.Register(ctx, RegisterRequest{Username: " alice ", Password: "other"})
	require.ErrorIs(t, err, ErrDuplicateUsername)
	require.Empty(t, token)
	require.Equal(t, 1, env.countUsers(t))
}

func TestRegister_RejectsEmptyCredentials(t *testing.T) {
	env := newTestEnv(t, ":memory:")

	for _, req := range []RegisterRequest{
		{Username: "", Password: "p@ss"},
		{Username: "   ", Password: "p@ss"},
		{Username: "alice", Password: ""},
	} {
		_, _, err := env.credentials.Register(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
	require.Zero(t, env.countUsers(t))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	alice, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	_, _, err = env.identities.FindOrCreateFederated(ctx, "google", "g-999", domain.Profile{Name: "Fed"})
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		got, err := env.credentials.Verify(ctx, "alice", "p@ss")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	})

	cases := map[string][2]string{
		"wrong password":  {"alice", "wrong"},
		"unknown user":    {"mallory", "p@ss"},
		"empty password":  {"alice", ""},
		"empty username":  {"", "p@ss"},
		"case sensitive":  {"ALICE", "p@ss"},
		"password prefix": {"alice", "p@"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.credentials.Verify(ctx, c[0], c[1])
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLogin_WrongPasswordEstablishesNoSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	_, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	identity, token, err := env.credentials.Login(ctx, "alice", "wrong", SessionMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Empty(t, token)
	require.Empty(t, identity.ID)

	identity, token, err = env.credentials.Login(ctx, "alice", "p@ss", SessionMeta{UserAgent: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, identity.ID, resolved.ID)
}

func TestFederated_FirstAndRepeatCallback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	first, err := env.federated.Complete(ctx, "code-1", "verifier-1")
	require.NoError(t, err)
	require.Equal(t, "g-123", first.FederatedID)
	require.Equal(t, "google", first.FederatedProvider)
	require.Equal(t, "Bob", first.Profile.Name)
	require.Empty(t, first.Username)
	require.Equal(t, "verifier-1", env.provider.verifier)
	require.Equal(t, 1, env.countUsers(t))

	// The provider now reports a different display name; the stored record
	// is returned unchanged.
	env.provider.profile.DisplayName = "Robert"
	second, err := env.federated.Complete(ctx, "code-2", "verifier-2")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Bob", second.Profile.Name)
	require.Equal(t, 1, env.countUsers(t))
}

func TestFederated_ConcurrentCallbacksResolveToOneIdentity(t *testing.T) {
	env := newTestEnv(t, sqlite.FileDSN(filepath.Join(t.TempDir(), "directory.db")))

	const callers = 12
	var (
		wg   sync.WaitGroup
		ids  = make(chan string, callers)
		errs = make(chan error, callers)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity, _, err := env.identities.FindOrCreateFederated(context.Background(), "google", "g-123",
				domain.Profile{Name: "Bob"})
			if err != nil {
				errs <- err
				return
			}
			ids <- identity.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, 1)
	require.Equal(t, 1, env.countUsers(t))
}

func TestFindOrCreateFederated_SurvivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t, ":memory:")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	identity, created, err := env.identities.FindOrCreateFederated(ctx, "google", "g-123", domain.Profile{Name: "Bob"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, identity.ID)
	require.Equal(t, 1, env.countUsers(t))
}

func TestFederated_ProviderFailures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		code    string
		profile domain.ExternalProfile
		err     error
		want    error
	}{
		{name: "empty code", code: "", want: ErrProviderRejected},
		{name: "rejected", code: "c", err: ErrProviderRejected, want: ErrProviderRejected},
		{name: "unreachable", code: "c", err: ErrProviderUnreachable, want: ErrProviderUnreachable},
		{name: "unclassified error", code: "c", err: errors.New("boom"), want: ErrProviderUnreachable},
		{name: "missing subject", code: "c", profile: domain.ExternalProfile{DisplayName: "Bob"}, want: ErrProviderRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, ":memory:")
			env.provider.profile = tc.profile
			env.provider.err = tc.err

			_, token, err := env.federated.SignIn(ctx, tc.code, "v", SessionMeta{})
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, token)
			require.Zero(t, env.countUsers(t))
		})
	}
}

func TestFederated_BeginHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t, ":memory:")

	login, err := env.federated.Begin(nil)
	require.NoError(t, err)
	require.NotEmpty(t, login.State)
	require.NotEmpty(t, login.Verifier)
	require.Contains(t, login.URL, login.State)

	other, err := env.federated.Begin([]string{"profile", "email"})
	require.NoError(t, err)
	require.NotEqual(t, login.State, other.State)
	require.NotEqual(t, login.Verifier, other.Verifier)

	require.Zero(t, env.provider.calls)
	require.Zero(t, env.countUsers(t))
}

func TestSession_RoundTripAndIdempotentDestroy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	token, err := env.sessions.Establish(ctx, identity, SessionMeta{UserAgent: "ua", IPAddress: "127.0.0.1"})
	require.NoError(t, err)

	got, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, identity.ID, got.ID)

	require.NoError(t, env.sessions.Destroy(ctx, token))
	require.NoError(t, env.sessions.Destroy(ctx, token))
	require.NoError(t, env.sessions.Destroy(ctx, ""))

	_, err = env.sessions.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSession_ResolveUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	_, err := env.sessions.Resolve(ctx, "")
	require.ErrorIs(t, err, ErrNoSession)

	_, err = env.sessions.Resolve(ctx, "not-a-real-token")
	require.ErrorIs(t, err, ErrNoSession)

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	token, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)

	env.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = env.sessions.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSession_ResolveDeletedIdentity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)
	token, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, env.store.Users().DeleteUser(ctx, identity.ID))

	_, err = env.sessions.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)

	// The orphaned session is gone afterwards.
	_, err = env.sessions.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSession_StoresOnlyFingerprintAndUserID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)
	token, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)

	_, err = env.store.Sessions().GetSessionByTokenHash(ctx, token)
	require.ErrorIs(t, err, store.ErrNotFound)

	sess, err := env.store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	require.NoError(t, err)
	require.Equal(t, identity.ID, sess.UserID)

	_, hasHash := reflect.TypeOf(domain.Identity{}).FieldByName("PasswordHash")
	require.False(t, hasHash, "identity must not carry credential material")
}

func TestSession_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	env.sessions.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)

	env.sessions.now = nil
	fresh, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)

	n, err := env.sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = env.sessions.Resolve(ctx, stale)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = env.sessions.Resolve(ctx, fresh)
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, token, err := env.credentials.Register(ctx, RegisterRequest{Username: "alice", Password: "p@ss"})
	require.NoError(t, err)

	p := domain.Profile{
		Name:        " Alice ",
		Company:     "Acme",
		Link:        "https://alice.example",
		PhoneNumber: "555-0100",
		Address:     "1 Main St",
		DateOfBirth: "1990-04-01",
	}
	updated, err := env.identities.UpdateProfile(ctx, identity.ID, p)
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.Profile.Name)

	// Visible through the session without re-login.
	resolved, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Acme", resolved.Profile.Company)

	// Credential untouched.
	_, err = env.credentials.Verify(ctx, "alice", "p@ss")
	require.NoError(t, err)

	for _, bad := range []domain.Profile{
		{Link: "javascript:alert(1)"},
		{Link: "not a url"},
		{DateOfBirth: "yesterday"},
		{Name: string(make([]rune, maxProfileFieldLen+1))},
	} {
		_, err := env.identities.UpdateProfile(ctx, identity.ID, bad)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}

	_, err = env.identities.UpdateProfile(ctx, "missing", domain.Profile{Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAvatar(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	_, err = env.identities.Avatar(ctx, identity.ID)
	require.ErrorIs(t, err, ErrNotFound)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, env.identities.UpdateAvatar(ctx, identity.ID, png))

	a, err := env.identities.Avatar(ctx, identity.ID)
	require.NoError(t, err)
	require.Equal(t, "image/png", a.ContentType)
	require.Equal(t, png, a.Data)

	err = env.identities.UpdateAvatar(ctx, identity.ID, []byte("<script>alert(1)</script>"))
	require.ErrorIs(t, err, ErrInvalidRequest)
	err = env.identities.UpdateAvatar(ctx, identity.ID, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateDetails_ValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{Name: "Alice"})
	require.NoError(t, err)

	_, err = env.identities.UpdateDetails(ctx, identity.ID, domain.Profile{Name: "Changed Name"}, []byte("<html>nope</html>"))
	require.ErrorIs(t, err, ErrUnsupportedAvatar)
	require.ErrorIs(t, err, ErrInvalidRequest)

	got, err := env.identities.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Profile.Name)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	updated, err := env.identities.UpdateDetails(ctx, identity.ID, domain.Profile{Name: "Alice Smith"}, png)
	require.NoError(t, err)
	require.Equal(t, "Alice Smith", updated.Profile.Name)

	a, err := env.identities.Avatar(ctx, identity.ID)
	require.NoError(t, err)
	require.Equal(t, "image/png", a.ContentType)

	// nil avatar leaves the stored image alone.
	_, err = env.identities.UpdateDetails(ctx, identity.ID, domain.Profile{Name: "Alice"}, nil)
	require.NoError(t, err)
	a, err = env.identities.Avatar(ctx, identity.ID)
	require.NoError(t, err)
	require.Equal(t, png, a.Data)

	_, err = env.identities.UpdateDetails(ctx, "missing", domain.Profile{Name: "x"}, png)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreErr_MissingCredentialIsInvalidRequest(t *testing.T) {
	err := storeErr("insert federated user", store.ErrMissingCredential)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.ErrorIs(t, err, store.ErrMissingCredential)
	require.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	for _, name := range []string{"Alice", "Alicia", "Bob"} {
		_, err := env.identities.CreateLocal(ctx, "u-"+name, "pw", domain.Profile{Name: name})
		require.NoError(t, err)
	}

	got, err := env.identities.Search(ctx, "ali", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Alicia", got[0].Profile.Name)

	got, err = env.identities.Search(ctx, "zzz", 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStoreFailuresAreStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")
	require.NoError(t, env.store.Close())

	_, err := env.identities.FindByID(ctx, "anything")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = env.credentials.Verify(ctx, "alice", "p@ss")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = env.sessions.Resolve(ctx, "token")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestHousekeeping_DeletesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, ":memory:")

	identity, err := env.identities.CreateLocal(ctx, "alice", "p@ss", domain.Profile{})
	require.NoError(t, err)

	env.sessions.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := env.sessions.Establish(ctx, identity, SessionMeta{})
	require.NoError(t, err)
	env.sessions.now = nil

	hk := NewHousekeepingService(env.sessions, nil, time.Hour)
	hk.Start()
	hk.Stop() // the first cleanup runs before the loop, Stop waits for it

	_, err = env.store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(stale))
	require.ErrorIs(t, err, store.ErrNotFound)
}
