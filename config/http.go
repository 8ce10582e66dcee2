package config

import "os"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":5000"`

	// BaseURL is the base URL of the application (e.g., "https://auth.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:5000"`

	// CookieDomain is the domain for the refresh-token cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// AllowedOrigin is the single client origin allowed to call the API
	// cross-origin with credentials.
	AllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	// PORT is honored as a fallback when HTTP_ADDR was not set explicitly
	// (common in PaaS environments and in the original deployment).
	if h.Addr == "" || h.Addr == ":5000" {
		if port := os.Getenv("PORT"); port != "" {
			h.Addr = ":" + port
		}
	}
	if h.Addr == "" {
		h.Addr = ":5000"
	}
}
