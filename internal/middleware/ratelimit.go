package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/metrics"
	"github.com/keyxmakerx/vpanel/internal/ratelimit"
)

// RateLimit returns middleware that consults l for every request, keyed by
// ratelimit.ClientIdentity. Rejections become a 429 apperror carrying the
// time until the window resets; the error handler turns it into a
// Retry-After header. name labels the limiter in logs and metrics; m may
// be nil.
func RateLimit(l *ratelimit.Limiter, name string, m *metrics.Metrics) echo.MiddlewareFunc {
	return RateLimitBy(l, name, m, func(c echo.Context) string {
		return ratelimit.ClientIdentity(c.Request())
	})
}

// RealIPKey keys a limiter on the address chosen by the server's
// IPExtractor, which ignores forwarding headers from untrusted peers.
func RealIPKey(c echo.Context) string {
	return c.RealIP()
}

// RateLimitBy is RateLimit with a caller-chosen key.
func RateLimitBy(l *ratelimit.Limiter, name string, m *metrics.Metrics, keyFn func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFn(c)
			d := l.Check(key)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.Config().MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				m.ObserveRateLimited(name)
				slog.Warn("rate limit exceeded",
					slog.String("limiter", name),
					slog.String("client", key),
					slog.String("path", c.Request().URL.Path),
				)
				return apperror.NewRateLimited(d.RetryAfter(time.Now()))
			}
			return next(c)
		}
	}
}
