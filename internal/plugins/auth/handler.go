package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// Handler handles HTTP requests for authentication (login, logout, me,
// change-password). Handlers are thin: they bind the request, call the
// service, and write the cookie and JSON response.
type Handler struct {
	service AuthService
	cookies *CookieFactory
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService, cookies *CookieFactory) *Handler {
	return &Handler{service: service, cookies: cookies}
}

// userResponse is the body of login and /me.
type userResponse struct {
	User *PublicUser `json:"user"`
}

// Login verifies credentials and sets the session cookie (POST /api/auth/login).
// The recorded address comes from the server's IPExtractor, so forwarding
// headers only count when they arrive through a trusted proxy.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	issued, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Attributes(issued.Token, &issued.ExpiresAt))

	pub := user.Public()
	return c.JSON(http.StatusOK, userResponse{User: &pub})
}

// Logout revokes the presented session, if any, and always clears the
// cookie (POST /api/auth/logout).
func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(h.cookies.Expired())

	if err := h.service.Logout(c.Request().Context(), h.cookies.Token(c.Request())); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the current principal, or 401 with {"user": null}
// (GET /api/auth/me).
func (h *Handler) Me(c echo.Context) error {
	session, err := authenticateRequest(c, h.service, h.cookies)
	if apperror.Is(err, "unauthorized") {
		return c.JSON(http.StatusUnauthorized, userResponse{User: nil})
	}
	if err != nil {
		return err
	}

	pub := session.Public()
	return c.JSON(http.StatusOK, userResponse{User: &pub})
}

// ChangePassword updates the caller's password; the session stays valid
// (POST /api/auth/change-password). Mounted behind RequireAuth, so the
// renewed cookie is already on the response whatever the outcome.
func (h *Handler) ChangePassword(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewMissingContext()
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	err := h.service.ChangePassword(c.Request().Context(), ChangePasswordInput{
		UserID:          session.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
