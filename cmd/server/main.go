package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tuitiondesk/internal/application"
	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
	"github.com/JonMunkholm/tuitiondesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"tokens", cfg.Tokens.Backend,
		"max_concurrent_imports", cfg.Backup.MaxConcurrentImports,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Background jobs (token sweeper) stop with this context.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	app, err := application.Open(jobCtx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(app.Service, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := app.Service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := app.Close(shutdownCtx); err != nil {
			slog.Error("close error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
