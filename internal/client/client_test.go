package client

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/publicsuffix"

	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/adapters/memstore"
	"github.com/target/authflow/internal/adapters/tokens"
	"github.com/target/authflow/internal/client/session"
	httpx "github.com/target/authflow/internal/http"
	"github.com/target/authflow/internal/service"
)

// fakeClock drives token issuance and validation so expiry is simulated
// instead of slept through.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testServer is a real auth server plus instrumentation on the refresh
// endpoint: a hit counter and an optional gate the test can hold closed.
type testServer struct {
	*httptest.Server
	clock        *fakeClock
	refreshHits atomic.Int32
	profileHits atomic.Int32
	refreshGate chan struct{} // refresh handlers block until this closes
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	source, err := tokens.NewSource(tokens.Config{
		AccessSecret:  []byte("access-token-secret"),
		RefreshSecret: []byte("refresh-token-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	store, err := memstore.NewSeeded(config.LoginFieldEmail, []memstore.SeedUser{
		{ID: "1", Email: "user@example.com", Username: "testuser", Name: "Test User", Password: "password123"},
	})
	require.NoError(t, err)

	svc := service.NewAuthService(service.AuthServiceOptions{
		Users:      store,
		Tokens:     source,
		LoginField: config.LoginFieldEmail,
	})

	router := httpx.NewRouter(httpx.RouterServices{
		Auth:          svc,
		LoginField:    config.LoginFieldEmail,
		RefreshTTL:    7 * 24 * time.Hour,
		AllowedOrigin: "http://localhost:3000",
		IsDev:         true,
	})

	ts := &testServer{clock: clock}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/refresh":
			ts.refreshHits.Add(1)
			if ts.refreshGate != nil {
				<-ts.refreshGate
			}
		case r.URL.Path == "/user/profile":
			ts.profileHits.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Server.Close)
	return ts
}

func newTestClient(t *testing.T, ts *testServer, statePath string) *Client {
	t.Helper()

	var state *StateFile
	if statePath != "" {
		state = NewStateFile(statePath)
	}
	c, err := New(Options{
		BaseURL:   ts.URL,
		StateFile: state,
	})
	require.NoError(t, err)
	return c
}

func TestClient_LoginAndProfile(t *testing.T) {
	ts := newTestServer(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	c := newTestClient(t, ts, statePath)

	user, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Test User", user.Name)

	snap := c.Session().Snapshot()
	assert.Equal(t, session.StatusAuthenticated, snap.Status())
	assert.NotEmpty(t, snap.AccessToken)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", profile.ID)

	// The persisted file carries the profile and flag, never the token.
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isAuthenticated": true`)
	assert.Contains(t, string(data), "user@example.com")
	assert.NotContains(t, string(data), snap.AccessToken)
}

func TestClient_LoginFailureSetsError(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	_, err := c.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	snap := c.Session().Snapshot()
	assert.Equal(t, session.StatusError, snap.Status())
	assert.NotEmpty(t, snap.Error)
}

func TestClient_ExpiredTokenIsRefreshedAndRetried(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	_, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)
	oldToken := c.Session().AccessToken()

	ts.clock.Advance(16 * time.Minute)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", profile.ID)

	assert.Equal(t, int32(1), ts.refreshHits.Load())
	assert.NotEqual(t, oldToken, c.Session().AccessToken())
}

func TestClient_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	const callers = 5

	ts := newTestServer(t)
	ts.refreshGate = make(chan struct{})
	c := newTestClient(t, ts, "")

	_, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	ts.clock.Advance(16 * time.Minute)

	// Open the gate once every caller has hit its first 401, so all of
	// them are waiting on the same in-flight refresh.
	go func() {
		for ts.profileHits.Load() < callers {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
		close(ts.refreshGate)
	}()

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Profile(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), ts.refreshHits.Load(), "concurrent 401s must share one refresh")
}

func TestClient_RefreshFailureCapForcesLogout(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	// No refresh cookie: every attempt is rejected by the server.
	require.Error(t, c.Refresh(context.Background()))
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, int32(2), ts.refreshHits.Load())
	assert.Equal(t, session.StatusAnonymous, c.Session().Snapshot().Status())

	// Cap reached: no third request leaves the client.
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(2), ts.refreshHits.Load())

	// Protected calls short-circuit the same way.
	_, err = c.Profile(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(2), ts.refreshHits.Load())
}

func TestClient_LoginResetsRefreshFailureCap(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	require.Error(t, c.Refresh(context.Background()))
	require.Error(t, c.Refresh(context.Background()))

	_, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	// The login set a fresh cookie and reset the counter.
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, int32(3), ts.refreshHits.Load())
}

func TestClient_BootstrapColdStart(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, filepath.Join(t.TempDir(), "state.json"))

	authed, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.False(t, authed)
	assert.Equal(t, session.StatusAnonymous, c.Session().Snapshot().Status())
}

func TestClient_BootstrapRestoresSession(t *testing.T) {
	ts := newTestServer(t)
	statePath := filepath.Join(t.TempDir(), "state.json")

	// One shared jar stands in for the browser's cookie store surviving
	// a page reload.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	httpClient := &http.Client{Jar: jar}

	first, err := New(Options{BaseURL: ts.URL, HTTPClient: httpClient, StateFile: NewStateFile(statePath)})
	require.NoError(t, err)
	_, err = first.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	second, err := New(Options{BaseURL: ts.URL, HTTPClient: httpClient, StateFile: NewStateFile(statePath)})
	require.NoError(t, err)

	authed, err := second.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, authed)

	snap := second.Session().Snapshot()
	assert.Equal(t, session.StatusAuthenticated, snap.Status())
	assert.NotEmpty(t, snap.AccessToken)
	require.NotNil(t, snap.User)
	assert.Equal(t, "user@example.com", snap.User.Email)
}

func TestClient_BootstrapFetchesProfileWithoutPersistedState(t *testing.T) {
	ts := newTestServer(t)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	httpClient := &http.Client{Jar: jar}

	first, err := New(Options{BaseURL: ts.URL, HTTPClient: httpClient})
	require.NoError(t, err)
	_, err = first.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	// No state file this time: the profile must come from the API.
	second, err := New(Options{BaseURL: ts.URL, HTTPClient: httpClient})
	require.NoError(t, err)

	authed, err := second.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, authed)
	require.NotNil(t, second.Session().Snapshot().User)
	assert.Equal(t, "Test User", second.Session().Snapshot().User.Name)
}

func TestClient_LogoutClearsEverything(t *testing.T) {
	ts := newTestServer(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	c := newTestClient(t, ts, statePath)

	_, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))

	snap := c.Session().Snapshot()
	assert.Equal(t, session.StatusAnonymous, snap.Status())
	assert.Empty(t, snap.AccessToken)

	_, err = os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))

	// The server cleared the cookie, so a refresh is rejected.
	assert.Error(t, c.Refresh(context.Background()))
}

func TestClient_LogoutClearsLocallyWhenServerIsDown(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	_, err := c.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	ts.Server.Close()

	err = c.Logout(context.Background())
	assert.Error(t, err)
	assert.Equal(t, session.StatusAnonymous, c.Session().Snapshot().Status())
}

func TestClient_SignupThenProfile(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, "")

	user, err := c.Signup(context.Background(), "new@example.com", "hunter22", "New User")
	require.NoError(t, err)
	assert.Equal(t, "New User", user.Name)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", profile.Email)
}

func TestClient_UsernameLoginField(t *testing.T) {
	// Server configured for email; a username-configured client must fail
	// with missing fields since it sends the wrong key.
	ts := newTestServer(t)
	c, err := New(Options{BaseURL: ts.URL, LoginField: config.LoginFieldUsername})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "testuser", "password123")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "missing_fields", apiErr.Code)
}

func TestStateFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewStateFile(path)

	// Missing file yields the zero state.
	state, err := f.Load()
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)

	require.NoError(t, f.Save(PersistedState{IsAuthenticated: true}))
	state, err = f.Load()
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear()) // idempotent

	// Corrupt contents degrade to the zero state.
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	state, err = f.Load()
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)
}
