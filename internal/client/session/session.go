// Package session holds the client-side authentication state machine.
//
// State is mutated only through the fixed transition methods below, which
// preserve two invariants: IsAuthenticated is true only when an access token
// is present and was set by a successful login/signup/refresh transition,
// and a present access token is never paired with IsAuthenticated == false.
package session

import (
	"errors"
	"sync"

	domainauth "github.com/target/authflow/internal/domain/auth"
)

// Status names the externally observable state of the session.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRefreshing     Status = "refreshing"
	StatusError          Status = "error"
)

// ErrNoToken is returned by transitions that would mark the session
// authenticated without an access token.
var ErrNoToken = errors.New("transition requires an access token")

// State is a snapshot of the client session. The access token lives only
// here, in memory; it is never written to durable storage.
type State struct {
	AccessToken     string
	User            *domainauth.Profile
	IsAuthenticated bool
	IsLoading       bool
	IsRefreshing    bool
	Error           string
}

// Status derives the named state from the flags.
func (s State) Status() Status {
	switch {
	case s.IsRefreshing:
		return StatusRefreshing
	case s.IsLoading:
		return StatusAuthenticating
	case s.IsAuthenticated:
		return StatusAuthenticated
	case s.Error != "":
		return StatusError
	default:
		return StatusAnonymous
	}
}

// Manager owns the session state and serializes all transitions.
type Manager struct {
	mu    sync.RWMutex
	state State
}

// NewManager returns a manager in the Anonymous state.
func NewManager() *Manager { return &Manager{} }

// SetCredentials applies the login/signup success transition: stores the
// token and profile, marks the session authenticated, and clears any error.
func (m *Manager) SetCredentials(token string, user domainauth.Profile) error {
	if token == "" {
		return ErrNoToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = token
	m.state.User = &user
	m.state.IsAuthenticated = true
	m.state.IsLoading = false
	m.state.Error = ""
	return nil
}

// UpdateAccessToken applies the refresh success transition: replaces the
// token and keeps the profile untouched.
func (m *Manager) UpdateAccessToken(token string) error {
	if token == "" {
		return ErrNoToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = token
	m.state.IsAuthenticated = true
	return nil
}

// RestoreUser repopulates the profile (e.g., from persisted state during
// bootstrap) without touching the authenticated flag or token.
func (m *Manager) RestoreUser(user domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.User = &user
}

// ClearCredentials applies the logout / refresh failure transition back to
// Anonymous: token, profile, and in-flight flags are dropped.
func (m *Manager) ClearCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = ""
	m.state.User = nil
	m.state.IsAuthenticated = false
	m.state.IsLoading = false
	m.state.IsRefreshing = false
}

// SetLoading flags a login/signup request in flight.
func (m *Manager) SetLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = loading
}

// SetRefreshing flags a silent refresh in flight.
func (m *Manager) SetRefreshing(refreshing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsRefreshing = refreshing
}

// SetError records a failed operation without touching the rest of the state.
func (m *Manager) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = msg
	m.state.IsLoading = false
}

// AccessToken returns the current in-memory access token, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.AccessToken
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.state
	if m.state.User != nil {
		user := *m.state.User
		snap.User = &user
	}
	return snap
}
