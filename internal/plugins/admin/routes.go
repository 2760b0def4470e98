package admin

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// RegisterRoutes mounts the admin API under /api/admin behind requireAuth
// and the admin role check.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth echo.MiddlewareFunc) {
	g := e.Group("/api/admin", requireAuth, auth.RequireRole(auth.RoleAdmin))

	g.GET("/users", h.ListUsers)
	g.POST("/users", h.CreateUser)
	g.PATCH("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)

	g.GET("/login-logs", h.ListLoginLogs)
	g.DELETE("/login-logs", h.ClearLoginLogs)
}
