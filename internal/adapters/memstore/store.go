// Package memstore implements the UserStore port with an in-memory,
// append-only user list. Records are seeded at construction and optionally
// appended by signup; they are never updated or deleted.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/target/authflow/config"
	domainauth "github.com/target/authflow/internal/domain/auth"
	"golang.org/x/crypto/bcrypt"
)

// Store is a mutex-guarded in-memory user store.
type Store struct {
	mu         sync.RWMutex
	users      []domainauth.User
	loginField config.LoginField
}

// New constructs an empty store keyed by the given login field.
func New(loginField config.LoginField) *Store {
	return &Store{loginField: loginField}
}

// SeedUser describes a user to seed with a plaintext password. The password
// is bcrypt-hashed at seed time; the store never holds plaintext.
type SeedUser struct {
	ID       string
	Email    string
	Username string
	Name     string
	Password string
}

// NewSeeded constructs a store pre-populated with the given users.
func NewSeeded(loginField config.LoginField, seeds []SeedUser) (*Store, error) {
	s := New(loginField)
	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %q: %w", seed.ID, err)
		}
		user := domainauth.User{
			ID:           seed.ID,
			Email:        seed.Email,
			Username:     seed.Username,
			Name:         seed.Name,
			PasswordHash: hash,
		}
		if err := s.Create(context.Background(), user); err != nil {
			return nil, fmt.Errorf("seed user %q: %w", seed.ID, err)
		}
	}
	return s, nil
}

// FindByLoginKey returns the user whose configured login field matches key.
func (s *Store) FindByLoginKey(_ context.Context, key string) (domainauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if s.loginKey(u) == key {
			return u, nil
		}
	}
	return domainauth.User{}, domainauth.ErrUserNotFound
}

// FindByID returns the user with the given identifier.
func (s *Store) FindByID(_ context.Context, id string) (domainauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domainauth.User{}, domainauth.ErrUserNotFound
}

// Create appends a user, rejecting duplicate login keys and IDs.
func (s *Store) Create(_ context.Context, user domainauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.loginKey(user)
	for _, u := range s.users {
		if s.loginKey(u) == key || u.ID == user.ID {
			return domainauth.ErrLoginKeyTaken
		}
	}
	s.users = append(s.users, user)
	return nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) loginKey(u domainauth.User) string {
	if s.loginField == config.LoginFieldUsername {
		return u.Username
	}
	return u.Email
}
