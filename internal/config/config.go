// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string

	// TrustedProxies lists CIDRs whose X-Forwarded-For is trusted for
	// request logging.
	TrustedProxies []string

	// CORSOrigins lists dashboard origins allowed to call the API with
	// credentials. Empty means same-origin only.
	CORSOrigins []string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds session and cookie settings.
	Auth AuthConfig

	// RateLimit holds the per-endpoint fixed-window limiter settings.
	RateLimit RateLimitConfig

	// Bootstrap controls first-run admin creation.
	Bootstrap BootstrapConfig

	// Jobs holds background job schedules.
	Jobs JobsConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars. If
// DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "vpanel").
	User string

	// Password is the MariaDB password (default: "vpanel").
	Password string

	// Name is the database name (default: "vpanel").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() so special characters in
// passwords are escaped. Times are parsed and stored as UTC.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	// Empty disables the report cache.
	URL string

	// ReportCacheTTL is how long a computed report summary stays cached.
	ReportCacheTTL time.Duration
}

// AuthConfig holds session and cookie settings.
type AuthConfig struct {
	// CookieName is the session cookie name (default: "vp_session").
	CookieName string

	// SessionTTL is the absolute server-side session lifetime. It is the same
	// for every role.
	SessionTTL time.Duration
}

// LimitConfig is one fixed-window limiter's parameters.
type LimitConfig struct {
	// Window is the duration of each counting window.
	Window time.Duration

	// MaxRequests is the number of requests allowed per window per client.
	MaxRequests int
}

// RateLimitConfig holds the limiters owned by the application.
type RateLimitConfig struct {
	// Reports guards the reporting endpoint (default: 120 per 60s).
	Reports LimitConfig

	// Login throttles credential guessing (default: 10 per 60s).
	Login LimitConfig
}

// BootstrapConfig controls creation of the first admin account.
type BootstrapConfig struct {
	// Enabled creates an "admin" principal on serve when no admin exists.
	Enabled bool

	// Username is the bootstrap admin's username (default: "admin").
	Username string

	// PasswordPath, when set, receives the generated password (mode 0600)
	// instead of the log.
	PasswordPath string
}

// JobsConfig holds cron specs for background hygiene jobs.
type JobsConfig struct {
	// SessionReapSpec schedules deletion of expired sessions.
	SessionReapSpec string

	// LimiterSweepSpec schedules dropping of elapsed limiter windows.
	LimiterSweepSpec string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if a value is unusable.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "vpanel"),
			Password:        getEnv("DB_PASSWORD", "vpanel"),
			Name:            getEnv("DB_NAME", "vpanel"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			ReportCacheTTL: getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		},

		Auth: AuthConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "vp_session"),
			SessionTTL: getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		},

		RateLimit: RateLimitConfig{
			Reports: LimitConfig{
				Window:      getEnvDuration("REPORTS_RATE_WINDOW", time.Minute),
				MaxRequests: getEnvInt("REPORTS_RATE_MAX", 120),
			},
			Login: LimitConfig{
				Window:      getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),
				MaxRequests: getEnvInt("LOGIN_RATE_MAX", 10),
			},
		},

		Bootstrap: BootstrapConfig{
			Enabled:      getEnvBool("BOOTSTRAP_ADMIN", false),
			Username:     getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			PasswordPath: getEnv("INITIAL_ADMIN_PASSWORD_PATH", ""),
		},

		Jobs: JobsConfig{
			SessionReapSpec:  getEnv("SESSION_REAP_SCHEDULE", "@every 1h"),
			LimiterSweepSpec: getEnv("LIMITER_SWEEP_SCHEDULE", "@every 5m"),
		},
	}

	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.Auth.CookieName == "" {
		return nil, fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	for name, l := range map[string]LimitConfig{"REPORTS_RATE": cfg.RateLimit.Reports, "LOGIN_RATE": cfg.RateLimit.Login} {
		if l.Window <= 0 || l.MaxRequests <= 0 {
			return nil, fmt.Errorf("%s_WINDOW and %s_MAX must be positive", name, name)
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode. Everything else
// is treated as production, which turns on Secure cookies.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev" || env == "test"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var, dropping empty entries.
func getEnvList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvBool reads a boolean env var ("true", "1", ...) or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "168h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
