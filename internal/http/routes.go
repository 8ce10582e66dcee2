package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth          *service.AuthService
	LoginField    config.LoginField
	CookieDomain  string
	RefreshTTL    time.Duration
	AllowedOrigin string
	IsDev         bool
	Logger        *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		LoginField:   services.LoginField,
		CookieDomain: services.CookieDomain,
		RefreshTTL:   services.RefreshTTL,
		IsDev:        services.IsDev,
		Logger:       services.Logger,
	}
	userHandlers := &UserHandlers{Svc: services.Auth}

	registerAuthRoutes(mux, authHandlers)
	registerUserRoutes(mux, userHandlers, services.Auth)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return CORS(services.AllowedOrigin)(mux)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/signup", h.Signup)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /auth/logout", h.Logout)
}

func registerUserRoutes(mux *http.ServeMux, h *UserHandlers, verifier AccessVerifier) {
	mux.Handle("GET /user/profile", RequireAuth(verifier)(http.HandlerFunc(h.Profile)))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
