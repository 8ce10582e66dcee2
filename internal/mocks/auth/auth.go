// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"fmt"
	"sync/atomic"

	domainauth "github.com/target/authflow/internal/domain/auth"
	"github.com/target/authflow/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UserStore   = (*MockUserStore)(nil)
	_ ports.TokenSource = (*MockTokenSource)(nil)
)

// MockUserStore is a func-field test double for ports.UserStore.
type MockUserStore struct {
	FindByLoginKeyFunc func(ctx context.Context, key string) (domainauth.User, error)
	FindByIDFunc       func(ctx context.Context, id string) (domainauth.User, error)
	CreateFunc         func(ctx context.Context, user domainauth.User) error
}

func (m *MockUserStore) FindByLoginKey(ctx context.Context, key string) (domainauth.User, error) {
	if m.FindByLoginKeyFunc != nil {
		return m.FindByLoginKeyFunc(ctx, key)
	}
	return domainauth.User{}, domainauth.ErrUserNotFound
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (domainauth.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return domainauth.User{}, domainauth.ErrUserNotFound
}

func (m *MockUserStore) Create(ctx context.Context, user domainauth.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

// MockTokenSource is a deterministic test double for ports.TokenSource.
// Issued tokens take the form "<kind>-<userID>-<n>" so tests can assert on
// them without parsing JWTs; verification reverses the scheme.
type MockTokenSource struct {
	IssueAccessFunc   func(userID string) (string, error)
	IssueRefreshFunc  func(userID string) (string, error)
	VerifyAccessFunc  func(token string) (string, error)
	VerifyRefreshFunc func(token string) (string, error)

	issued atomic.Int64
}

func (m *MockTokenSource) IssuePair(userID string) (domainauth.TokenPair, error) {
	access, err := m.IssueAccess(userID)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	refresh, err := m.IssueRefresh(userID)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *MockTokenSource) IssueAccess(userID string) (string, error) {
	if m.IssueAccessFunc != nil {
		return m.IssueAccessFunc(userID)
	}
	return fmt.Sprintf("access-%s-%d", userID, m.issued.Add(1)), nil
}

func (m *MockTokenSource) IssueRefresh(userID string) (string, error) {
	if m.IssueRefreshFunc != nil {
		return m.IssueRefreshFunc(userID)
	}
	return fmt.Sprintf("refresh-%s-%d", userID, m.issued.Add(1)), nil
}

func (m *MockTokenSource) VerifyAccess(token string) (string, error) {
	if m.VerifyAccessFunc != nil {
		return m.VerifyAccessFunc(token)
	}
	return verifyMockToken(token, "access-")
}

func (m *MockTokenSource) VerifyRefresh(token string) (string, error) {
	if m.VerifyRefreshFunc != nil {
		return m.VerifyRefreshFunc(token)
	}
	return verifyMockToken(token, "refresh-")
}

func verifyMockToken(token, prefix string) (string, error) {
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", domainauth.ErrInvalidToken
	}
	rest := token[len(prefix):]
	// Strip the trailing "-<n>" counter.
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '-' {
			return rest[:i], nil
		}
	}
	return "", domainauth.ErrInvalidToken
}
