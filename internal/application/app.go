// Package application wires configuration into a running core.Service. The
// HTTP server and tuitionctl both start through Open so they always agree
// on store, token backend and limits.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/store/memstore"
	"github.com/JonMunkholm/tuitiondesk/internal/store/mongostore"
	"github.com/JonMunkholm/tuitiondesk/internal/store/postgres"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

// App owns the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Store   store.Store
	Tokens  tokens.Store
	Service *core.Service
}

// Open connects the configured store and token backend and builds the
// service. The memory token sweeper runs until ctx is done or Close.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	tk, err := OpenTokens(ctx, cfg.Tokens)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	svc := core.NewService(st, tk, core.Options{
		RegistrationTTL: cfg.Tokens.RegistrationTTL,
		PaymentTTL:      cfg.Tokens.PaymentTTL,
		MaxArchiveSize:  cfg.Backup.MaxArchiveSize,
		RowConcurrency:  cfg.Backup.RowConcurrency,
		Limiter:         core.NewImportLimiter(cfg.Backup.MaxConcurrentImports, cfg.Backup.AcquireTimeout),
	})
	return &App{Config: cfg, Store: st, Tokens: tk, Service: svc}, nil
}

// OpenStore returns the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		slog.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresURL, postgres.PoolOptions{
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		slog.Info("connected to postgres")
		return st, nil
	case config.DriverMongo:
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.OpTimeout)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		slog.Info("connected to mongo", "database", cfg.MongoDatabase)
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// OpenTokens returns the link-token backend named by cfg.Backend.
func OpenTokens(ctx context.Context, cfg config.TokenConfig) (tokens.Store, error) {
	switch cfg.Backend {
	case config.TokensMemory, "":
		m := tokens.NewMemoryStore()
		m.Start(ctx, cfg.SweepInterval)
		return m, nil
	case config.TokensRedis:
		r, err := tokens.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
		return r, nil
	}
	return nil, fmt.Errorf("unknown token backend %q", cfg.Backend)
}

// Close waits for running imports, then releases the token store and the
// store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Service.Limiter().WaitForDrain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain imports: %w", err))
	}
	if err := a.Tokens.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tokens: %w", err))
	}
	if err := a.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
