package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// Context keys for storing session data in Echo context. Other plugins
// use the exported getters below to read them.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that resolves the session cookie and
// injects the session into the request context. On success the cookie is
// re-sent with a slid expiry before the handler runs, so every response
// of an authenticated route carries it, error and 429 responses included.
// A presented but rejected token gets its cookie cleared.
func RequireAuth(service AuthService, cookies *CookieFactory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := authenticateRequest(c, service, cookies)
			if err != nil {
				return err
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyUserID, session.UserID)

			return next(c)
		}
	}
}

// RequireRole returns middleware that allows only sessions with exactly the
// given role. Must be mounted after RequireAuth.
func RequireRole(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := CheckRole(GetSession(c), role); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// authenticateRequest validates the request's cookie and renews it.
func authenticateRequest(c echo.Context, service AuthService, cookies *CookieFactory) (*Session, error) {
	token := cookies.Token(c.Request())

	session, err := service.Authenticate(c.Request().Context(), token)
	if err != nil {
		if token != "" && apperror.Is(err, "unauthorized") {
			c.SetCookie(cookies.Expired())
		}
		return nil, err
	}

	renewSessionCookie(c, cookies, session)
	return session, nil
}

// renewSessionCookie re-sends the same token with expiry now + TTL. The
// server-side expires_at is never touched, so renewal cannot extend a
// session past its absolute lifetime.
func renewSessionCookie(c echo.Context, cookies *CookieFactory, session *Session) {
	c.SetCookie(cookies.Renewed(session.Token, time.Now()))
}

// --- Exported getters for other plugins ---

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}
