package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/adapters/memstore"
	"github.com/target/authflow/internal/adapters/tokens"
	"github.com/target/authflow/internal/service"
)

// fakeClock is a mutable clock shared between the token source and the test.
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

type testStack struct {
	handler http.Handler
	clock   *fakeClock
	source  *tokens.Source
}

func newTestStack(t *testing.T, rotate bool) *testStack {
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
		Users:         store,
		Tokens:        source,
		LoginField:    config.LoginFieldEmail,
		RotateRefresh: rotate,
	})

	handler := NewRouter(RouterServices{
		Auth:          svc,
		LoginField:    config.LoginFieldEmail,
		RefreshTTL:    7 * 24 * time.Hour,
		AllowedOrigin: "http://localhost:3000",
		IsDev:         true,
	})

	return &testStack{handler: handler, clock: clock, source: source}
}

func (s *testStack) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testStack) login(t *testing.T) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	body := strings.NewReader(`{"email":"user@example.com","password":"password123"}`)
	w := s.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", body))
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	result := w.Result()
	defer result.Body.Close()
	cookie := findCookie(t, result, "refreshToken")
	require.NotNil(t, cookie)
	return resp.AccessToken, cookie
}

func (s *testStack) profile(t *testing.T, accessToken string, refreshCookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if refreshCookie != nil {
		req.AddCookie(refreshCookie)
	}
	return s.do(t, req)
}

func (s *testStack) refresh(t *testing.T, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return s.do(t, req)
}

// End-to-end token lifecycle: login, use the token, let it expire,
// silently refresh, and use the replacement.
func TestRouter_TokenLifecycle(t *testing.T) {
	stack := newTestStack(t, false)

	accessToken, refreshCookie := stack.login(t)

	w := stack.profile(t, accessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"1"`)

	// Past the 15 minute access lifetime, within the 7 day refresh lifetime.
	stack.clock.Advance(16 * time.Minute)

	w = stack.profile(t, accessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = stack.refresh(t, refreshCookie)
	require.Equal(t, http.StatusOK, w.Code, "refresh failed: %s", w.Body.String())

	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	require.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, accessToken, refreshed.AccessToken)

	w = stack.profile(t, refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RefreshWithoutCookie(t *testing.T) {
	stack := newTestStack(t, false)

	w := stack.refresh(t, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RefreshWithGarbageCookie(t *testing.T) {
	stack := newTestStack(t, false)

	w := stack.refresh(t, &http.Cookie{Name: "refreshToken", Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RefreshWithExpiredCookie(t *testing.T) {
	stack := newTestStack(t, false)

	_, refreshCookie := stack.login(t)
	stack.clock.Advance(8 * 24 * time.Hour)

	w := stack.refresh(t, refreshCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RefreshForVanishedUser(t *testing.T) {
	stack := newTestStack(t, false)

	// A structurally valid refresh token for an ID the store never held.
	orphan, err := stack.source.IssueRefresh("999")
	require.NoError(t, err)

	w := stack.refresh(t, &http.Cookie{Name: "refreshToken", Value: orphan})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RefreshRotationReissuesCookie(t *testing.T) {
	stack := newTestStack(t, true)

	_, refreshCookie := stack.login(t)

	w := stack.refresh(t, refreshCookie)
	require.Equal(t, http.StatusOK, w.Code)

	result := w.Result()
	defer result.Body.Close()
	rotated := findCookie(t, result, "refreshToken")
	require.NotNil(t, rotated, "rotation must set a replacement cookie")
	assert.NotEmpty(t, rotated.Value)
}

func TestRouter_RefreshTokenRejectedAsBearer(t *testing.T) {
	stack := newTestStack(t, false)

	_, refreshCookie := stack.login(t)

	w := stack.profile(t, refreshCookie.Value, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code,
		"refresh token presented as a bearer token must be rejected")
}

func TestRouter_SignupThenLogin(t *testing.T) {
	stack := newTestStack(t, false)

	body := strings.NewReader(`{"email":"second@example.com","password":"hunter22","name":"Second"}`)
	w := stack.do(t, httptest.NewRequest(http.MethodPost, "/auth/signup", body))
	require.Equal(t, http.StatusOK, w.Code, "signup failed: %s", w.Body.String())

	var resp struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	pw := stack.profile(t, resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, pw.Code)
	assert.Contains(t, pw.Body.String(), resp.User.ID)

	// Duplicate signup is a conflict and does not mint tokens.
	body = strings.NewReader(`{"email":"second@example.com","password":"x","name":"Dup"}`)
	w = stack.do(t, httptest.NewRequest(http.MethodPost, "/auth/signup", body))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_Healthz(t *testing.T) {
	stack := newTestStack(t, false)

	w := stack.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
