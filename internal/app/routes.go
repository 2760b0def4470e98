package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/jobs"
	"github.com/keyxmakerx/vpanel/internal/middleware"
	"github.com/keyxmakerx/vpanel/internal/plugins/admin"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
	"github.com/keyxmakerx/vpanel/internal/plugins/reports"
)

// stores are the persistence dependencies of every plugin.
type stores struct {
	users    auth.UserRepository
	logs     auth.LoginLogRepository
	sessions auth.SessionRepository
	metrics  reports.MetricsSource
}

// RegisterRoutes sets up all application routes and background jobs
// against the MariaDB repositories.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() error {
	return a.mount(stores{
		users:    auth.NewUserRepository(a.DB),
		logs:     auth.NewLoginLogRepository(a.DB),
		sessions: auth.NewSessionRepository(a.DB),
		metrics:  reports.NewMariaDBSource(a.DB),
	})
}

func (a *App) mount(s stores) error {
	e := a.Echo
	cfg := a.Config

	// --- Public Routes (no auth required) ---

	e.GET("/healthz", a.healthz)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	// --- Plugin Routes ---

	sessionStore := auth.NewSessionStore(s.sessions, cfg.Auth.SessionTTL)
	authService := auth.NewAuthService(s.users, s.logs, sessionStore, a.Metrics)
	cookies := auth.NewCookieFactory(cfg.Auth.CookieName, !cfg.IsDevelopment(), cfg.Auth.SessionTTL)
	requireAuth := auth.RequireAuth(authService, cookies)

	// auth plugin (login is public and throttled, the rest need a session)
	auth.RegisterRoutes(e, auth.NewHandler(authService, cookies), requireAuth,
		middleware.RateLimitBy(a.Limiters[LoginLimiter], LoginLimiter, a.Metrics, middleware.RealIPKey))

	// admin plugin (admin role)
	admin.RegisterRoutes(e, admin.NewHandler(admin.NewUserAdminService(s.users, s.logs, sessionStore)), requireAuth)

	// reports plugin (any role, rate limited)
	var cache reports.Cache
	if a.Redis != nil {
		cache = reports.NewRedisCache(a.Redis, cfg.Redis.ReportCacheTTL)
	}
	reports.RegisterRoutes(e, reports.NewHandler(reports.NewService(s.metrics, cache)), requireAuth,
		middleware.RateLimit(a.Limiters[ReportsLimiter], ReportsLimiter, a.Metrics))

	// --- Background Jobs ---

	if err := a.Jobs.Add(jobs.SessionReapJob, cfg.Jobs.SessionReapSpec, jobs.ReapSessions(sessionStore, a.Metrics)); err != nil {
		return err
	}
	return a.Jobs.Add(jobs.LimiterSweepJob, cfg.Jobs.LimiterSweepSpec, jobs.SweepLimiters(a.Limiters))
}

// healthz reports whether the database is reachable.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := pingDB(ctx, a.DB); err != nil {
		return apperror.NewUnavailable(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func pingDB(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return sql.ErrConnDone
	}
	return db.PingContext(ctx)
}
