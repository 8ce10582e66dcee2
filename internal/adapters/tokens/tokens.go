// Package tokens implements the TokenSource port with HS256-signed JWTs.
// Access and refresh tokens are signed with separate secrets so that a
// refresh token can never pass access-token verification, and vice versa.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/authflow/internal/domain/auth"
)

// Claims carries the registered claims plus the user identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Config groups construction parameters for Source.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now overrides the clock; tests use it to simulate expiry.
	Now func() time.Time
}

// Source issues and verifies access/refresh token pairs.
type Source struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewSource constructs a Source from config.
func NewSource(cfg Config) (*Source, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Source{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
	}, nil
}

// IssuePair issues an access and a refresh token for the user.
func (s *Source) IssuePair(userID string) (domainauth.TokenPair, error) {
	access, err := s.IssueAccess(userID)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	refresh, err := s.IssueRefresh(userID)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccess issues a short-lived access token for the user.
func (s *Source) IssueAccess(userID string) (string, error) {
	return s.sign(userID, s.accessSecret, s.accessTTL)
}

// IssueRefresh issues a long-lived refresh token for the user.
func (s *Source) IssueRefresh(userID string) (string, error) {
	return s.sign(userID, s.refreshSecret, s.refreshTTL)
}

// VerifyAccess validates an access token and returns the user ID it carries.
func (s *Source) VerifyAccess(token string) (string, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns the user ID it carries.
func (s *Source) VerifyRefresh(token string) (string, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *Source) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Source) verify(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainauth.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", domainauth.ErrInvalidToken
	}

	return claims.UserID, nil
}
