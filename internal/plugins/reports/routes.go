package reports

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the reporting API. Authentication runs before the
// limiter so a 429 still carries the renewed session cookie.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/reports", requireAuth, limiter)
	g.GET("/summary", h.Summary)
}
