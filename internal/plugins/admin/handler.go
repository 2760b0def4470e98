package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// Handler handles admin API requests. Mounted behind RequireAuth and
// RequireRole(admin), so a session is always present.
type Handler struct {
	service UserAdminService
}

// NewHandler creates a new admin handler.
func NewHandler(service UserAdminService) *Handler {
	return &Handler{service: service}
}

// ListUsers returns every principal (GET /api/admin/users).
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

// CreateUser adds a principal (POST /api/admin/users).
func (h *Handler) CreateUser(c echo.Context) error {
	actor := auth.GetSession(c)
	if actor == nil {
		return apperror.NewMissingContext()
	}

	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.CreateUser(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

// UpdateUser applies a partial update (PATCH /api/admin/users/:id).
func (h *Handler) UpdateUser(c echo.Context) error {
	actor := auth.GetSession(c)
	if actor == nil {
		return apperror.NewMissingContext()
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.UpdateUser(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// DeleteUser removes a principal (DELETE /api/admin/users/:id).
func (h *Handler) DeleteUser(c echo.Context) error {
	actor := auth.GetSession(c)
	if actor == nil {
		return apperror.NewMissingContext()
	}

	if err := h.service.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// ListLoginLogs returns recent logins (GET /api/admin/login-logs?limit=N).
func (h *Handler) ListLoginLogs(c echo.Context) error {
	limit := DefaultLoginLogLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.NewBadRequest("limit must be an integer")
		}
		limit = n
	}

	logs, err := h.service.ListLoginLogs(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"logs": logs})
}

// ClearLoginLogs purges the login history (DELETE /api/admin/login-logs).
func (h *Handler) ClearLoginLogs(c echo.Context) error {
	actor := auth.GetSession(c)
	if actor == nil {
		return apperror.NewMissingContext()
	}

	n, err := h.service.ClearLoginLogs(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}
