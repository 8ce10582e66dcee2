// Package client is the Go counterpart of the browser app: it keeps the
// session state machine, persists the non-secret slice of it, and wraps the
// auth API with silent refresh and a single retry on unauthorized responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/client/session"
	domainauth "github.com/target/authflow/internal/domain/auth"
)

// defaultMaxRefreshAttempts caps consecutive refresh failures before the
// client gives up and forces a logout.
const defaultMaxRefreshAttempts = 2

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. "http://localhost:5000".
	BaseURL string

	// LoginField selects which credential field carries the login key.
	// Must match the server's configuration. Defaults to email.
	LoginField config.LoginField

	// HTTPClient is used for all requests. When nil, a client with a
	// public-suffix-aware cookie jar is built; a provided client should
	// carry its own jar or the refresh cookie will be dropped.
	HTTPClient *http.Client

	// StateFile, when set, persists the profile and authenticated flag
	// across restarts. Tokens are never persisted.
	StateFile *StateFile

	Logger *slog.Logger

	// MaxRefreshAttempts overrides the consecutive-failure cap.
	// Zero means the default of 2.
	MaxRefreshAttempts int
}

// Client talks to the auth API and maintains the session state machine.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	loginField config.LoginField
	http       *http.Client
	sessions   *session.Manager
	state      *StateFile
	logger     *slog.Logger

	// refreshGroup collapses concurrent refresh triggers into one request.
	refreshGroup singleflight.Group

	mu                 sync.Mutex
	refreshFailures    int
	maxRefreshAttempts int
}

// New builds a Client. The default HTTP client gets a cookie jar so the
// HTTP-only refresh cookie survives between calls, like a browser's does.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("build cookie jar: %w", err)
		}
		httpClient = &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAttempts := opts.MaxRefreshAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRefreshAttempts
	}

	return &Client{
		baseURL:            strings.TrimRight(opts.BaseURL, "/"),
		loginField:         opts.LoginField,
		http:               httpClient,
		sessions:           session.NewManager(),
		state:              opts.StateFile,
		logger:             logger,
		maxRefreshAttempts: maxAttempts,
	}, nil
}

// Session exposes the state machine for observation.
func (c *Client) Session() *session.Manager { return c.sessions }

// authResponse is the login/signup success body.
type authResponse struct {
	AccessToken string             `json:"accessToken"`
	User        domainauth.Profile `json:"user"`
}

// refreshResponse is the refresh success body.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// profileResponse is the profile success body.
type profileResponse struct {
	User domainauth.Profile `json:"user"`
}

// Login authenticates with the login key (email or username, per the
// configured login field) and password.
func (c *Client) Login(ctx context.Context, loginKey, password string) (domainauth.Profile, error) {
	body := c.credentialsBody(loginKey, password)
	return c.authenticate(ctx, "/auth/login", body)
}

// Signup registers a new account and authenticates in one step.
func (c *Client) Signup(ctx context.Context, loginKey, password, name string) (domainauth.Profile, error) {
	body := c.credentialsBody(loginKey, password)
	body["name"] = name
	return c.authenticate(ctx, "/auth/signup", body)
}

func (c *Client) credentialsBody(loginKey, password string) map[string]string {
	body := map[string]string{"password": password}
	if c.loginField == config.LoginFieldUsername {
		body["username"] = loginKey
	} else {
		body["email"] = loginKey
	}
	return body
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (domainauth.Profile, error) {
	c.sessions.SetLoading(true)

	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		c.sessions.SetError(err.Error())
		return domainauth.Profile{}, err
	}

	if err := c.sessions.SetCredentials(resp.AccessToken, resp.User); err != nil {
		c.sessions.SetError(err.Error())
		return domainauth.Profile{}, fmt.Errorf("server returned no access token: %w", err)
	}

	c.mu.Lock()
	c.refreshFailures = 0
	c.mu.Unlock()

	c.persistSession()
	return resp.User, nil
}

// Logout notifies the server and clears the local session. The local state
// is cleared even when the server call fails; the returned error only
// reports the notification outcome.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", c.sessions.AccessToken(), nil, nil)

	c.sessions.ClearCredentials()
	c.clearPersisted()

	if err != nil {
		c.logger.WarnContext(ctx, "logout notification failed", "error", err)
		return fmt.Errorf("notify logout: %w", err)
	}
	return nil
}

// Refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share a single in-flight request.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.requestRefresh(ctx)
	return err
}

// Bootstrap restores the session on startup: persisted profile first, then a
// silent refresh to re-earn an access token. A rejected refresh is the normal
// cold-start path and leaves the client Anonymous without error; only
// transport failures are reported.
func (c *Client) Bootstrap(ctx context.Context) (bool, error) {
	if c.state != nil {
		persisted, err := c.state.Load()
		if err != nil {
			return false, err
		}
		if persisted.IsAuthenticated && persisted.User != nil {
			c.sessions.RestoreUser(*persisted.User)
		}
	}

	if _, err := c.requestRefresh(ctx); err != nil {
		if IsUnauthorized(err) || isForbidden(err) || errors.Is(err, ErrSessionExpired) {
			c.logger.DebugContext(ctx, "silent refresh rejected, starting anonymous")
			return false, nil
		}
		return false, err
	}

	// The refresh response carries no profile; fetch it if the persisted
	// state had none.
	if c.sessions.Snapshot().User == nil {
		if _, err := c.Profile(ctx); err != nil {
			return false, err
		}
	}

	c.persistSession()
	return true, nil
}

// Profile fetches the authenticated user's profile, refreshing once if the
// access token has gone stale.
func (c *Client) Profile(ctx context.Context) (domainauth.Profile, error) {
	var resp profileResponse
	if err := c.doProtected(ctx, http.MethodGet, "/user/profile", &resp); err != nil {
		return domainauth.Profile{}, err
	}
	c.sessions.RestoreUser(resp.User)
	return resp.User, nil
}

// doProtected performs an authenticated request. On a 401 it runs one
// coordinated refresh and retries exactly once with the new token; a second
// 401 is returned to the caller.
func (c *Client) doProtected(ctx context.Context, method, path string, dst any) error {
	err := c.doJSON(ctx, method, path, c.sessions.AccessToken(), nil, dst)
	if !IsUnauthorized(err) {
		return err
	}

	token, refreshErr := c.requestRefresh(ctx)
	if refreshErr != nil {
		return refreshErr
	}
	return c.doJSON(ctx, method, path, token, nil, dst)
}

// requestRefresh is the refresh coordinator. All triggers funnel through a
// singleflight group so concurrent 401s produce one refresh request, and a
// consecutive-failure counter enforces the attempt cap: once it is hit the
// client logs out locally instead of hammering the server.
func (c *Client) requestRefresh(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		c.mu.Lock()
		capped := c.refreshFailures >= c.maxRefreshAttempts
		c.mu.Unlock()
		if capped {
			c.forceLogout(ctx)
			return nil, ErrSessionExpired
		}

		c.sessions.SetRefreshing(true)
		defer c.sessions.SetRefreshing(false)

		var resp refreshResponse
		err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", "", nil, &resp)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.refreshFailures++
			c.sessions.ClearCredentials()
			c.clearPersisted()
			return nil, err
		}

		c.refreshFailures = 0
		if err := c.sessions.UpdateAccessToken(resp.AccessToken); err != nil {
			return nil, fmt.Errorf("refresh returned no access token: %w", err)
		}
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// forceLogout drops the session without a server round trip.
func (c *Client) forceLogout(ctx context.Context) {
	c.logger.InfoContext(ctx, "refresh attempt cap reached, logging out")
	c.sessions.ClearCredentials()
	c.clearPersisted()
}

func (c *Client) persistSession() {
	if c.state == nil {
		return
	}
	snap := c.sessions.Snapshot()
	err := c.state.Save(PersistedState{
		User:            snap.User,
		IsAuthenticated: snap.IsAuthenticated,
	})
	if err != nil {
		c.logger.Warn("persist session state failed", "error", err)
	}
}

func (c *Client) clearPersisted() {
	if c.state == nil {
		return
	}
	if err := c.state.Clear(); err != nil {
		c.logger.Warn("clear session state failed", "error", err)
	}
}

// doJSON performs one request and decodes the response. Non-2xx responses
// become *APIError with the server's error code and message.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}

func isForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}
