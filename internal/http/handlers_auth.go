// Package httpx provides HTTP handlers and middleware for the auth-flow API.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/target/authflow/config"
	domainauth "github.com/target/authflow/internal/domain/auth"
	"github.com/target/authflow/internal/service"
)

// refreshCookieName is the cookie carrying the refresh token. HTTP-only:
// the browser client never reads it, it only rides along on /auth calls.
const refreshCookieName = "refreshToken"

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, in service.Credentials) (*service.AuthResult, error)
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Profile(ctx context.Context, userID string) (domainauth.Profile, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	LoginField   config.LoginField
	CookieDomain string
	RefreshTTL   time.Duration
	IsDev        bool
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// credentialsRequest is the login request body. Either email or username is
// the login key, depending on server configuration.
type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req credentialsRequest) loginKey(field config.LoginField) string {
	if field == config.LoginFieldUsername {
		return req.Username
	}
	return req.Email
}

// Login handles the login endpoint.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Login(r.Context(), service.Credentials{
		LoginKey: req.loginKey(h.LoginField),
		Password: req.Password,
	})
	if err != nil {
		h.writeAuthError(w, r, err, "login_failed")
		return
	}

	h.setRefreshCookie(w, r, result.Tokens.RefreshToken)
	WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": result.Tokens.AccessToken,
		"user":        result.User,
	})
}

// signupRequest is the signup request body.
type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup handles the registration endpoint.
// POST /auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	loginKey := credentialsRequest{Email: req.Email, Username: req.Username}.loginKey(h.LoginField)
	result, err := h.Svc.Signup(r.Context(), service.SignupInput{
		LoginKey: loginKey,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.writeAuthError(w, r, err, "signup_failed")
		return
	}

	h.setRefreshCookie(w, r, result.Tokens.RefreshToken)
	WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": result.Tokens.AccessToken,
		"user":        result.User,
	})
}

// Refresh handles the silent-refresh endpoint. The refresh token travels
// only in the HTTP-only cookie, never in the body.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	result, err := h.Svc.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.writeAuthError(w, r, err, "refresh_failed")
		return
	}

	// Rotation enabled: reissue the cookie alongside the access token.
	if result.RefreshToken != "" {
		h.setRefreshCookie(w, r, result.RefreshToken)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": result.AccessToken,
	})
}

// Logout handles the logout endpoint. It only clears the refresh cookie;
// access tokens are stateless and simply age out.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// writeAuthError maps service errors onto the endpoint error contract.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingField):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_fields", Err: err})
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: err})
	case errors.Is(err, domainauth.ErrLoginKeyTaken):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "login_key_taken", Err: err})
	case errors.Is(err, service.ErrMissingRefreshToken):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "refresh_token_required", Err: err})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		// The cookie is useless now; clear it so the client stops retrying.
		h.clearRefreshCookie(w, r)
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "invalid_refresh_token",
			Err:     errors.New("invalid or expired refresh token"),
		})
	default:
		h.logger().ErrorContext(r.Context(), "auth operation failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: fallback, Err: err})
	}
}

// setRefreshCookie writes the refresh-token cookie. Strict same-site and
// secure transport in production; lax in development so a localhost client
// on a different port still works.
func (h *AuthHandlers) setRefreshCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   h.cookieSecure(r),
		SameSite: h.cookieSameSite(),
		MaxAge:   int(h.RefreshTTL.Seconds()),
	})
}

// clearRefreshCookie clears the refresh-token cookie by setting it to expire
// immediately. It mirrors the attributes used when setting the cookie to
// maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   h.cookieSecure(r),
		SameSite: h.cookieSameSite(),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

func (h *AuthHandlers) cookieSecure(r *http.Request) bool {
	if !h.IsDev {
		return true
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (h *AuthHandlers) cookieSameSite() http.SameSite {
	if h.IsDev {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}
