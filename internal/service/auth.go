package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/target/authflow/config"
	domainauth "github.com/target/authflow/internal/domain/auth"
	"github.com/target/authflow/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

// Service-level sentinel errors. HTTP handlers map these onto status codes.
var (
	// ErrMissingField signals a missing required request field (400).
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidCredentials signals a failed login (401). It deliberately does
	// not distinguish an unknown login key from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingRefreshToken signals a refresh call without a token (401).
	ErrMissingRefreshToken = errors.New("refresh token required")

	// ErrInvalidRefreshToken signals a bad, expired, or orphaned refresh token (403).
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users  ports.UserStore
	Tokens ports.TokenSource

	// LoginField selects which user field signup writes the login key to.
	LoginField config.LoginField

	// RotateRefresh reissues the refresh token on every successful refresh.
	RotateRefresh bool
}

// AuthService orchestrates login, signup, refresh, and profile lookup by
// coordinating the user store and the token source.
type AuthService struct {
	users      ports.UserStore
	tokens     ports.TokenSource
	loginField config.LoginField
	rotate     bool
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	return &AuthService{
		users:      opts.Users,
		tokens:     opts.Tokens,
		loginField: opts.LoginField,
		rotate:     opts.RotateRefresh,
	}
}

// Credentials carries a login request.
type Credentials struct {
	LoginKey string
	Password string
}

// AuthResult is the outcome of a successful login or signup.
type AuthResult struct {
	Tokens domainauth.TokenPair
	User   domainauth.Profile
}

// Login authenticates the credentials and issues a token pair.
// Unknown login keys and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in Credentials) (*AuthResult, error) {
	if in.LoginKey == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: %s and password are required", ErrMissingField, s.loginField)
	}

	user, err := s.users.FindByLoginKey(ctx, in.LoginKey)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(in.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueFor(user)
}

// SignupInput carries a signup request.
type SignupInput struct {
	LoginKey string
	Password string
	Name     string
}

// Signup creates a new user and issues a token pair for it.
// Returns domainauth.ErrLoginKeyTaken when the login key is registered.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if in.LoginKey == "" || in.Password == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: %s, password and name are required", ErrMissingField, s.loginField)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domainauth.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		PasswordHash: hash,
	}
	if s.loginField == config.LoginFieldUsername {
		user.Username = in.LoginKey
	} else {
		user.Email = in.LoginKey
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domainauth.ErrLoginKeyTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issueFor(user)
}

// RefreshResult is the outcome of a successful refresh. RefreshToken is empty
// unless rotation is enabled.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Refresh verifies the refresh token and issues a new access token.
// With rotation enabled it also issues a replacement refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	// The token is stateless; the user it references must still exist.
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	result := &RefreshResult{AccessToken: access}
	if s.rotate {
		rotated, err := s.tokens.IssueRefresh(userID)
		if err != nil {
			return nil, fmt.Errorf("rotate refresh token: %w", err)
		}
		result.RefreshToken = rotated
	}
	return result, nil
}

// Profile returns the public profile for a user ID.
// Returns domainauth.ErrUserNotFound when the user no longer exists.
func (s *AuthService) Profile(ctx context.Context, userID string) (domainauth.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			return domainauth.Profile{}, err
		}
		return domainauth.Profile{}, fmt.Errorf("find user: %w", err)
	}
	return user.Profile(), nil
}

// VerifyAccess validates an access token for the request guard.
func (s *AuthService) VerifyAccess(token string) (string, error) {
	return s.tokens.VerifyAccess(token)
}

func (s *AuthService) issueFor(user domainauth.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &AuthResult{Tokens: pair, User: user.Profile()}, nil
}
