package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/adapters/memstore"
	"github.com/target/authflow/internal/adapters/tokens"
	"github.com/target/authflow/internal/service"
)

// Seed credentials for the demo user store. These mirror the documented
// test account; real deployments would replace the store wholesale.
var seedUsers = []memstore.SeedUser{
	{
		ID:       "1",
		Email:    "user@example.com",
		Username: "testuser",
		Name:     "Test User",
		Password: "password123",
	},
}

// BuildAuthService wires the user store and token source into an AuthService.
func BuildAuthService(cfg *config.AppConfig, logger *slog.Logger) (*service.AuthService, error) {
	store, err := memstore.NewSeeded(cfg.Auth.LoginField, seedUsers)
	if err != nil {
		return nil, fmt.Errorf("seed user store: %w", err)
	}

	source, err := tokens.NewSource(tokens.Config{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build token source: %w", err)
	}

	if cfg.IsDev && logger != nil {
		// The original demo printed its test credentials on startup;
		// keep that, but only in dev mode.
		logger.Info("seeded demo user",
			"login_field", string(cfg.Auth.LoginField),
			"email", seedUsers[0].Email,
			"username", seedUsers[0].Username)
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Users:         store,
		Tokens:        source,
		LoginField:    cfg.Auth.LoginField,
		RotateRefresh: cfg.Auth.RotateRefresh,
	}), nil
}
