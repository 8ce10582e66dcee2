package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/authflow/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting authflow service",
		"addr", cfg.HTTP.Addr,
		"dev", cfg.IsDev,
		"login_field", string(cfg.Auth.LoginField),
		"rotate_refresh", cfg.Auth.RotateRefresh)

	if err = bootstrap.ValidateConfig(&cfg); err != nil {
		return err
	}

	auth, err := bootstrap.BuildAuthService(&cfg, logger)
	if err != nil {
		return err
	}

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config: &cfg,
		Auth:   auth,
		Logger: logger,
	})

	return bootstrap.RunServerWithShutdown(ctx, server, logger)
}
