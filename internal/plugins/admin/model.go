// Package admin provides principal management for administrators: user
// CRUD and the login history. Every route requires an authenticated
// session with the admin role.
package admin

import (
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// Login log listing bounds.
const (
	DefaultLoginLogLimit = 100
	MaxLoginLogLimit     = 500
)

// maxUsernameLength matches users.username VARCHAR(64).
const maxUsernameLength = 64

// CreateUserRequest is the body of POST /api/admin/users.
type CreateUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// UpdateUserRequest is the body of PATCH /api/admin/users/:id. Nil fields
// are left unchanged.
type UpdateUserRequest struct {
	Username *string    `json:"username"`
	Role     *auth.Role `json:"role"`
	IsActive *bool      `json:"isActive"`
	Password *string    `json:"password"`
}

// empty reports whether the request changes nothing.
func (r UpdateUserRequest) empty() bool {
	return r.Username == nil && r.Role == nil && r.IsActive == nil && r.Password == nil
}
