// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	domainauth "github.com/target/authflow/internal/domain/auth"
)

// UserStore persists and retrieves user records.
// FindByLoginKey matches the configured login-key field (email or username).
type UserStore interface {
	FindByLoginKey(ctx context.Context, key string) (domainauth.User, error)
	FindByID(ctx context.Context, id string) (domainauth.User, error)

	// Create appends a new user. Returns domainauth.ErrLoginKeyTaken when the
	// user's login key is already registered.
	Create(ctx context.Context, user domainauth.User) error
}

// TokenSource issues and verifies signed tokens for user identifiers.
// Access and refresh tokens use distinct secrets: a token issued for one
// verification path must be rejected by the other.
type TokenSource interface {
	IssuePair(userID string) (domainauth.TokenPair, error)
	IssueAccess(userID string) (string, error)
	IssueRefresh(userID string) (string, error)

	// VerifyAccess returns the user ID carried by a valid access token,
	// or domainauth.ErrInvalidToken.
	VerifyAccess(token string) (string, error)

	// VerifyRefresh returns the user ID carried by a valid refresh token,
	// or domainauth.ErrInvalidToken.
	VerifyRefresh(token string) (string, error)
}
