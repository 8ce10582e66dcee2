package auth

import "errors"

// Sentinel errors shared between adapters and services.
var (
	// ErrUserNotFound is returned when no user matches a lookup key or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrLoginKeyTaken is returned when signup reuses an existing login key.
	ErrLoginKeyTaken = errors.New("login key already registered")

	// ErrInvalidToken is returned when a token fails signature or expiry checks.
	ErrInvalidToken = errors.New("invalid or expired token")
)
