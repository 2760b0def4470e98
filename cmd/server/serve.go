package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/keyxmakerx/vpanel/internal/app"
	"github.com/keyxmakerx/vpanel/internal/config"
	"github.com/keyxmakerx/vpanel/internal/database"
	"github.com/keyxmakerx/vpanel/internal/plugins/admin"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting VPanel",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to MariaDB: %w", err)
	}
	defer func() { _ = db.Close() }()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// --- Connect to Redis (optional) ---
	rdb := connectCache(ctx, cfg.Redis)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// --- First-run admin ---
	if err := admin.BootstrapAdmin(ctx, auth.NewUserRepository(db), cfg.Bootstrap); err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}

	// --- Create Application ---
	application := app.New(cfg, db, rdb)
	if err := application.RegisterRoutes(); err != nil {
		return fmt.Errorf("registering routes: %w", err)
	}
	application.Jobs.Start(ctx)

	// --- Graceful Shutdown ---
	// Drain connections on SIGINT/SIGTERM so container restarts are seamless.
	errCh := make(chan error, 1)
	go func() { errCh <- application.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			application.Jobs.Stop()
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", slog.Any("error", err))
		return err
	}
	slog.Info("server stopped")
	return nil
}

// connectCache opens the report cache. Redis is optional: an empty URL or
// a failed connection leaves caching disabled and the server keeps going.
func connectCache(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	rdb, err := database.NewRedis(ctx, cfg)
	switch {
	case err != nil:
		slog.Warn("Redis unavailable; report caching disabled", slog.Any("error", err))
		return nil
	case rdb == nil:
		slog.Info("REDIS_URL not set; report caching disabled")
		return nil
	}
	slog.Info("connected to Redis")
	return rdb
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation. LOG_LEVEL sets the threshold.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel maps LOG_LEVEL to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
