package config

import (
	"fmt"
	"strings"
	"time"
)

// LoginField selects which user field acts as the login key.
type LoginField string

const (
	// LoginFieldEmail authenticates users by their email address.
	LoginFieldEmail LoginField = "email"
	// LoginFieldUsername authenticates users by their username.
	LoginFieldUsername LoginField = "username"
)

// UnmarshalText implements encoding.TextUnmarshaler for LoginField.
func (f *LoginField) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "email", "username":
		*f = LoginField(v)
		return nil
	default:
		return fmt.Errorf("invalid LoginField: %q (valid options: email, username)", v)
	}
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// AuthConfig groups token signing and credential configuration.
//
// The default secrets exist so a dev checkout runs without setup;
// production deployments must override both.
type AuthConfig struct {
	// AccessSecret signs short-lived access tokens.
	AccessSecret string `env:"ACCESS_SECRET" envDefault:"access-token-secret"`

	// RefreshSecret signs long-lived refresh tokens. Must differ from
	// AccessSecret so tokens cannot be replayed across verification paths.
	RefreshSecret string `env:"REFRESH_SECRET" envDefault:"refresh-token-secret"`

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`

	// RefreshTTL is the refresh token (and cookie) lifetime.
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`

	// LoginField selects the login key field accepted by login/signup.
	LoginField LoginField `env:"LOGIN_FIELD" envDefault:"email"`

	// RotateRefresh reissues the refresh token (and cookie) on every
	// successful refresh when enabled.
	RotateRefresh bool `env:"ROTATE_REFRESH" envDefault:"false"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.AccessTTL <= 0 {
		a.AccessTTL = defaultAccessTTL
	}
	if a.RefreshTTL <= 0 {
		a.RefreshTTL = defaultRefreshTTL
	}
	if a.LoginField == "" {
		a.LoginField = LoginFieldEmail
	}
}

// UsesDefaultSecrets reports whether either signing secret is still the
// built-in development default.
func (a *AuthConfig) UsesDefaultSecrets() bool {
	return a.AccessSecret == "access-token-secret" || a.RefreshSecret == "refresh-token-secret"
}
