// storefront serves the storefront session layer: guest and customer
// wishlists and carts, login reconciliation and catalog filtering.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/config"
	"storefront-sync/internal/gateway"
	"storefront-sync/internal/handler"
	"storefront-sync/internal/localstore"
	"storefront-sync/internal/middleware"
	"storefront-sync/internal/reconcile"
	"storefront-sync/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := initLogger()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("api_base_url", cfg.Upstream.BaseURL),
		slog.String("store_path", cfg.StorePath),
		slog.Bool("chrome_tls", cfg.Upstream.ChromeTLS),
		slog.String("min_client_version", cfg.MinClientVersion),
		slog.Duration("session_idle_timeout", cfg.SessionIdleTimeout),
	)

	store, err := localstore.Open(cfg.StorePath, logger)
	if err != nil {
		return fmt.Errorf("opening guest store: %w", err)
	}
	defer store.Close()

	gw, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		APIKey:         cfg.Upstream.APIKey,
		RequestTimeout: cfg.Upstream.RequestTimeout,
		ChromeTLS:      cfg.Upstream.ChromeTLS,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	cache, closeCache, err := newSnapshotCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	policy := catalog.DefaultPolicy()
	policy.FullFetchLimit = cfg.Catalog.FullFetchLimit
	resolver := catalog.NewResolver(gw,
		catalog.WithPolicy(policy),
		catalog.WithCache(cache),
		catalog.WithLogger(logger),
	)

	registry := session.NewRegistry(session.Config{
		Store:    store,
		Gateways: gw,
		Engine:   reconcile.New(logger),
		Resolver: resolver,
		Logger:   logger,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.SessionIdleTimeout > 0 {
		go registry.SweepIdle(sweepCtx, cfg.SessionIdleTimeout)
	}

	h := handler.New(registry, resolver, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery must be outermost to catch panics from logging middleware.
	// Logging wraps the session middleware so it sees the echoed session id.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		session.Middleware(registry, cfg.MinClientVersion, logger),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}

		stopSweep()

		// Background confirmations outlive their requests; let them land
		// before the store closes.
		if err := registry.Close(shutdownCtx); err != nil {
			logger.Warn("pending confirmations abandoned", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	return nil
}

// newSnapshotCache picks the shared Redis cache when REDIS_URL is set and
// the in-process cache otherwise.
func newSnapshotCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.SnapshotCache, func(), error) {
	if cfg.Catalog.RedisURL == "" {
		return catalog.NewMemoryCache(cfg.Catalog.CacheTTL), func() {}, nil
	}

	rc, err := catalog.NewRedisCache(ctx, cfg.Catalog.RedisURL, cfg.Catalog.CacheTTL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting catalog cache: %w", err)
	}
	logger.Info("catalog snapshots cached in redis")
	return rc, func() { rc.Close() }, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
