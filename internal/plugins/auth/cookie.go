package auth

import (
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "vp_session"

// CookieFactory derives the session cookie's attributes. One factory is
// built at startup and shared by the handler and middleware so the
// attribute set is defined in exactly one place.
type CookieFactory struct {
	// Name is the cookie name (default "vp_session").
	Name string

	// Secure marks the cookie HTTPS-only. False only outside production.
	Secure bool

	// TTL is the sliding client-side lifetime used on renewal.
	TTL time.Duration
}

// NewCookieFactory creates a factory. An empty name falls back to
// DefaultCookieName.
func NewCookieFactory(name string, secure bool, ttl time.Duration) *CookieFactory {
	if name == "" {
		name = DefaultCookieName
	}
	return &CookieFactory{Name: name, Secure: secure, TTL: ttl}
}

// Attributes returns the cookie carrying token. With a nil expiresAt the
// result is a browser-session cookie.
func (f *CookieFactory) Attributes(token string, expiresAt *time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     f.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if expiresAt != nil {
		c.Expires = expiresAt.UTC()
	}
	return c
}

// Renewed returns the cookie for token with its expiry slid to now + TTL.
func (f *CookieFactory) Renewed(token string, now time.Time) *http.Cookie {
	exp := now.Add(f.TTL)
	return f.Attributes(token, &exp)
}

// Expired returns a cookie that makes the client delete the session cookie.
func (f *CookieFactory) Expired() *http.Cookie {
	c := f.Attributes("", nil)
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	return c
}

// Token reads the session token from r, or "" if absent.
func (f *CookieFactory) Token(r *http.Request) string {
	c, err := r.Cookie(f.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
