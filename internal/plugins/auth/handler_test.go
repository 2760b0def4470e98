package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// testServer wires the auth routes against in-memory repositories.
type testServer struct {
	e   *echo.Echo
	env *testEnv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := newTestEnv(t)
	cookies := NewCookieFactory(DefaultCookieName, false, DefaultSessionTTL)
	h := NewHandler(env.svc, cookies)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.NewInternal(err)
		}
		_ = c.JSON(appErr.Code, map[string]string{"message": appErr.Message})
	}
	noLimit := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	RegisterRoutes(e, h, RequireAuth(env.svc, cookies), noLimit)

	// A role-gated route to exercise RequireRole.
	e.GET("/api/admin/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"by": GetUserID(c)})
	}, RequireAuth(env.svc, cookies), RequireRole(RoleAdmin))

	return &testServer{e: e, env: env}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login",
		`{"username":"`+username+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(t, c)
	return c
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			found = c
		}
	}
	return found
}

func TestLoginEndpoint_SetsHTTPOnlyCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ana","password":"correcta123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ana", body.User.Username)
	assert.Equal(t, "user", body.User.Role)
	assert.Equal(t, "u-ana", body.User.ID)
	assert.NotContains(t, rec.Body.String(), "argon2id")

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.Expires.After(time.Now().Add(6*24*time.Hour)))
}

func TestLoginEndpoint_Failures(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ana","password":"nope-nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))

	rec = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ana"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeEndpoint_NoCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestMeEndpoint_RefreshesCookie(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "ana", "correcta123")

	rec := s.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":"u-ana","username":"ana","role":"user"}}`, rec.Body.String())

	refreshed := sessionCookie(rec)
	require.NotNil(t, refreshed)
	assert.Equal(t, cookie.Value, refreshed.Value, "renewal keeps the same token")
	assert.True(t, refreshed.HttpOnly)
}

func TestChangePasswordEndpoint_WrongCurrent(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "ana", "correcta123")
	before := s.env.users.get("u-ana").PasswordHash

	rec := s.do(t, http.MethodPost, "/api/auth/change-password",
		`{"currentPassword":"incorrecta","newPassword":"nueva-clave-1"}`, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	refreshed := sessionCookie(rec)
	require.NotNil(t, refreshed, "cookie is refreshed even when the handler fails")
	assert.Equal(t, cookie.Value, refreshed.Value)
	assert.False(t, refreshed.Expires.IsZero())

	assert.Equal(t, before, s.env.users.get("u-ana").PasswordHash)

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code, "session remains valid")
}

func TestChangePasswordEndpoint_Success(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "ana", "correcta123")

	rec := s.do(t, http.MethodPost, "/api/auth/change-password",
		`{"currentPassword":"correcta123","newPassword":"nueva-clave-1"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	s.login(t, "ana", "nueva-clave-1")
}

func TestChangePasswordEndpoint_RequiresSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/change-password",
		`{"currentPassword":"correcta123","newPassword":"nueva-clave-1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutThenReuseCookie(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "ana", "correcta123")

	rec := s.do(t, http.MethodPost, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestLogoutWithoutCookie(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sessionCookie(rec))
}

func TestRequireAuth_ClearsRejectedCookie(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/change-password", `{}`,
		&http.Cookie{Name: DefaultCookieName, Value: "forged"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `{"message":"authentication required"}`, strings.TrimSpace(rec.Body.String()))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestRequireRole(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/admin/ping", "", s.login(t, "ana", "correcta123"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/ping", "", s.login(t, "root", "admin-pass-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"by":"u-root"}`, rec.Body.String())
}
