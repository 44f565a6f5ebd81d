package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/config"
	"github.com/abczzz13/unprotect/internal/logger"
	"github.com/abczzz13/unprotect/internal/server"
	"github.com/abczzz13/unprotect/internal/session"
	"github.com/abczzz13/unprotect/internal/settings"
	"github.com/abczzz13/unprotect/internal/settings/redisstore"
	"github.com/abczzz13/unprotect/internal/settings/sqlstore"
	unprotectprom "github.com/abczzz13/unprotect/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("unprotectd failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	handler, err := newHandler(cfg, store, zl, prom.DefaultRegisterer, prom.DefaultGatherer)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting unprotectd", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	zl.Info("server stopped")
	return nil
}

// newStore opens the configured settings store.
func newStore(ctx context.Context, cfg *config.Config) (settings.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return settings.NewMemoryStore(), nil
	case config.BackendRedis:
		store, err := redisstore.New(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("initializing redis store: %w", err)
		}
		return store, nil
	default:
		if cfg.Storage.Driver == "sqlite3" {
			if dir := filepath.Dir(cfg.Storage.DSN); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("creating data directory: %w", err)
				}
			}
		}
		store, err := sqlstore.New(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("initializing sql store: %w", err)
		}
		return store, nil
	}
}

// newHandler wires the policy, settings service and sessions into the router.
func newHandler(cfg *config.Config, store settings.Store, zl *zap.Logger, reg prom.Registerer, gatherer prom.Gatherer) (http.Handler, error) {
	opts, err := cfg.Resolver.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		unprotect.WithLogger(logger.NewSecurityLogger(zl)),
		unprotectprom.WithRegisterer(reg),
	)

	policy, err := unprotect.NewPolicy(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating policy: %w", err)
	}

	var sessions *session.Manager
	if cfg.Session.SessionsEnabled() {
		sessions, err = session.NewManager([]byte(cfg.Session.Secret), cfg.Session.CookieName, cfg.Session.Issuer, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("creating session manager: %w", err)
		}
	} else {
		zl.Warn("SESSION_SECRET not set, every visitor is treated as logged out")
	}

	if cfg.Admin.Token == "" {
		zl.Warn("ADMIN_TOKEN not set, settings API disabled")
	}

	return server.NewRouter(server.Config{
		Policy:     policy,
		Settings:   settings.NewService(store, cfg.Storage.CacheTTL, zl),
		Sessions:   sessions,
		Logger:     zl,
		AdminToken: cfg.Admin.Token,
		Gatherer:   gatherer,
	}), nil
}
