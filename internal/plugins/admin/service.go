package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
)

// UserAdminService is the business logic behind the admin API. Every
// method takes the acting admin's session so self-targeting rules can be
// enforced here rather than in handlers.
type UserAdminService interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	CreateUser(ctx context.Context, actor *auth.Session, req CreateUserRequest) (*auth.User, error)
	UpdateUser(ctx context.Context, actor *auth.Session, id string, req UpdateUserRequest) (*auth.User, error)
	DeleteUser(ctx context.Context, actor *auth.Session, id string) error
	ListLoginLogs(ctx context.Context, limit int) ([]auth.LoginLog, error)
	ClearLoginLogs(ctx context.Context, actor *auth.Session) (int64, error)
}

// userAdminService implements UserAdminService.
type userAdminService struct {
	users    auth.UserRepository
	logs     auth.LoginLogRepository
	sessions auth.SessionStore
	now      func() time.Time
}

// NewUserAdminService creates the admin service.
func NewUserAdminService(users auth.UserRepository, logs auth.LoginLogRepository, sessions auth.SessionStore) UserAdminService {
	return &userAdminService{users: users, logs: logs, sessions: sessions, now: time.Now}
}

// ListUsers returns every principal. Hashes are never serialized.
func (s *userAdminService) ListUsers(ctx context.Context) ([]auth.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("listing users: %w", err))
	}
	return users, nil
}

// CreateUser adds an active principal. An empty role means "user".
func (s *userAdminService) CreateUser(ctx context.Context, actor *auth.Session, req CreateUserRequest) (*auth.User, error) {
	username, err := validateUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if !role.Valid() {
		return nil, apperror.NewValidation("role must be admin or user")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now().UTC().Truncate(time.Second)
	user := &auth.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError("creating user", err)
	}

	slog.Info("admin created user",
		slog.String("target_user", user.ID),
		slog.String("role", string(role)),
		slog.String("by", actor.UserID),
	)
	return user, nil
}

// UpdateUser applies a partial update. An admin cannot demote or deactivate
// their own account. A password reset or deactivation revokes every
// session of the target.
func (s *userAdminService) UpdateUser(ctx context.Context, actor *auth.Session, id string, req UpdateUserRequest) (*auth.User, error) {
	if req.empty() {
		return nil, apperror.NewValidation("no fields to update")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("finding user", err)
	}

	revoke := false
	if req.Username != nil {
		username, err := validateUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		user.Username = username
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, apperror.NewValidation("role must be admin or user")
		}
		if *req.Role != user.Role {
			if err := auth.CheckNotSelf(actor, id, "demote"); err != nil {
				return nil, err
			}
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		if !*req.IsActive {
			if err := auth.CheckNotSelf(actor, id, "deactivate"); err != nil {
				return nil, err
			}
			revoke = revoke || user.IsActive
		}
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
		}
		user.PasswordHash = hash
		revoke = true
	}

	user.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError("updating user", err)
	}

	if revoke {
		n, err := s.sessions.RevokeAllForUser(ctx, id)
		if err != nil {
			return nil, err
		}
		slog.Info("revoked sessions after admin update",
			slog.String("target_user", id),
			slog.Int("session_count", n),
		)
	}

	slog.Info("admin updated user",
		slog.String("target_user", id),
		slog.String("by", actor.UserID),
	)
	return user, nil
}

// DeleteUser hard-deletes a principal. Self-deletion is forbidden and
// leaves the store untouched.
func (s *userAdminService) DeleteUser(ctx context.Context, actor *auth.Session, id string) error {
	if err := auth.CheckNotSelf(actor, id, "delete"); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError("deleting user", err)
	}

	slog.Info("admin deleted user",
		slog.String("target_user", id),
		slog.String("by", actor.UserID),
	)
	return nil
}

// ListLoginLogs returns the most recent entries first. limit is clamped to
// [1, MaxLoginLogLimit].
func (s *userAdminService) ListLoginLogs(ctx context.Context, limit int) ([]auth.LoginLog, error) {
	logs, err := s.logs.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("listing login logs: %w", err))
	}
	return logs, nil
}

// ClearLoginLogs purges the login history.
func (s *userAdminService) ClearLoginLogs(ctx context.Context, actor *auth.Session) (int64, error) {
	n, err := s.logs.DeleteAll(ctx)
	if err != nil {
		return 0, apperror.NewUnavailable(fmt.Errorf("purging login logs: %w", err))
	}
	slog.Info("admin cleared login logs",
		slog.Int64("deleted", n),
		slog.String("by", actor.UserID),
	)
	return n, nil
}

// --- Helpers ---

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 1
	case limit > MaxLoginLogLimit:
		return MaxLoginLogLimit
	default:
		return limit
	}
}

func validateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", apperror.NewValidation("username is required")
	}
	if len(username) > maxUsernameLength {
		return "", apperror.NewValidation(fmt.Sprintf("username must be at most %d characters", maxUsernameLength))
	}
	return username, nil
}

func validatePassword(password string) error {
	if len(password) < auth.MinPasswordLength {
		return apperror.NewValidation(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	return nil
}

// storeError passes taxonomy errors (not found, conflict) through and wraps
// anything else as StoreUnavailable.
func storeError(op string, err error) error {
	if apperror.Is(err, "not_found") || apperror.Is(err, "conflict") {
		return err
	}
	return apperror.NewUnavailable(fmt.Errorf("%s: %w", op, err))
}
