// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance, metrics, rate limiters, job scheduler) and wires together
// all plugins.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/config"
	"github.com/keyxmakerx/vpanel/internal/jobs"
	"github.com/keyxmakerx/vpanel/internal/metrics"
	"github.com/keyxmakerx/vpanel/internal/middleware"
	"github.com/keyxmakerx/vpanel/internal/ratelimit"
)

// Limiter names, used as map keys, log fields and metric labels.
const (
	LoginLimiter   = "login"
	ReportsLimiter = "reports"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis backs the report cache. Nil disables caching.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Metrics is the Prometheus registry exposed at /metrics.
	Metrics *metrics.Metrics

	// Limiters are the process-wide rate limiter instances by name. Each
	// is created once here and injected into its route's middleware.
	Limiters map[string]*ratelimit.Limiter

	// Jobs runs the hygiene jobs registered by RegisterRoutes.
	Jobs *jobs.Scheduler
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() honours X-Forwarded-For only from configured proxies.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Echo:    e,
		Metrics: metrics.New(),
		Limiters: map[string]*ratelimit.Limiter{
			LoginLimiter:   ratelimit.New(limiterConfig(cfg.RateLimit.Login)),
			ReportsLimiter: ratelimit.New(limiterConfig(cfg.RateLimit.Reports)),
		},
		Jobs: jobs.NewScheduler(),
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

func limiterConfig(c config.LimitConfig) ratelimit.Config {
	return ratelimit.Config{Window: c.Window, MaxRequests: c.MaxRequests}
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (origin check)
// runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers. HSTS only outside development.
	a.Echo.Use(middleware.SecurityHeaders(!a.Config.IsDevelopment()))

	// CORS -- credentialed requests from the configured dashboard origins.
	a.Echo.Use(middleware.CORS(a.Config.CORSOrigins))

	// Mutating requests from foreign origins are rejected. SameSite=Lax
	// covers most cases; this covers same-site subdomains.
	a.Echo.Use(middleware.SameOrigin(a.Config.CORSOrigins))
}

// errorHandler is the custom Echo error handler. Every response is JSON:
// {"error": "<status text>", "message": "<safe message>"}. Internal causes
// are logged, never serialized. Rate-limited errors get a Retry-After
// header in whole seconds.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := apperror.SafeCode(err)
	message := apperror.SafeMessage(err)

	// Check if it's our domain error type.
	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
		if appErr.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", retryAfterSeconds(appErr.RetryAfter))
		}
	case errors.As(err, &echoErr):
		// Echo's built-in HTTP errors (e.g., 404 from router).
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		// Truly unexpected error -- log it.
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{
		"error":   http.StatusText(code),
		"message": message,
	})
}

// retryAfterSeconds renders d as whole seconds, rounded up, minimum 1.
func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The resource you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestEntityTooLarge:
		return "The request body is too large."
	case http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port. It
// returns http.ErrServerClosed after Shutdown.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting VPanel server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops the job scheduler and drains in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.Jobs.Stop()
	return a.Echo.Shutdown(ctx)
}
