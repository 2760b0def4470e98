package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// SameOrigin returns middleware that rejects cross-site state-changing
// requests. The session cookie is SameSite=Lax, which already keeps it off
// cross-site POSTs in current browsers; this check also covers older ones.
//
// A mutating request passes when it has no Origin header (non-browser
// clients), when Origin matches the request's own host, or when Origin is
// one of trustedOrigins (the CORS allow-list).
func SameOrigin(trustedOrigins []string) echo.MiddlewareFunc {
	trusted := make(map[string]bool, len(trustedOrigins))
	for _, o := range trustedOrigins {
		trusted[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isSafeMethod(req.Method) {
				return next(c)
			}

			origin := req.Header.Get("Origin")
			if origin == "" || trusted[origin] {
				return next(c)
			}
			if u, err := url.Parse(origin); err == nil && u.Host == req.Host {
				return next(c)
			}
			return apperror.NewForbidden("cross-origin request rejected")
		}
	}
}

// isSafeMethod returns true for HTTP methods that should not change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}
