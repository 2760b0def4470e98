// Package auth handles password verification, opaque session tokens, and
// role-gated access control for VPanel. Sessions live in MariaDB keyed by
// the SHA-256 fingerprint of the bearer token; the raw token only ever
// exists in the client's vp_session cookie.
//
// This is a CORE plugin: every other plugin's routes sit behind RequireAuth.
package auth

import (
	"time"
)

// Role is a principal's access level. The role set is flat: admin does not
// imply anything beyond admin, and there are exactly two values.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a principal stored in the users table.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP  *string    `json:"lastLoginIp,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PublicUser is the projection returned by login and /me.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Public returns the client-facing projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Role: u.Role}
}

// LoginLog is one successful login. Entries are append-only.
type LoginLog struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// --- Service Input DTOs (passed from handler to service) ---

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// ChangePasswordInput is the input for a self-service password change.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// MinPasswordLength applies to every password set through the API.
const MinPasswordLength = 8

// --- Session ---

// Session is the authenticated principal attached to a request by
// RequireAuth. Token is the raw bearer token from the cookie; it is kept
// for cookie renewal and logout and never serialized.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Public returns the principal projection of s.
func (s *Session) Public() PublicUser {
	return PublicUser{ID: s.UserID, Username: s.Username, Role: s.Role}
}

// IssuedSession is returned by SessionStore.Create. This is the only point
// where the raw token exists server-side.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	ID        int64
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
}

// SessionWithUser is a session row joined to its owning principal.
type SessionWithUser struct {
	SessionRecord
	Username string
	Role     Role
	IsActive bool
}
