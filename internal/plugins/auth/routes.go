package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the auth API. loginGuard throttles credential
// guessing on POST /api/auth/login; requireAuth is RequireAuth built from
// the same service and cookie factory as h.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth, loginGuard echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	g.POST("/login", h.Login, loginGuard)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
	g.POST("/change-password", h.ChangePassword, requireAuth)
}
