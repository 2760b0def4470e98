package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/metrics"
)

// Client-facing messages. Every authentication failure uses msgAuthRequired
// so missing, unknown, expired and revoked tokens look identical.
const (
	msgAuthRequired       = "authentication required"
	msgInvalidCredentials = "invalid username or password"
	msgDeactivated        = "account is deactivated"
)

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repositories directly.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (*IssuedSession, *User, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Session, error)
	ChangePassword(ctx context.Context, input ChangePasswordInput) error
}

// authService implements AuthService with argon2id hashing and MariaDB sessions.
type authService struct {
	users    UserRepository
	logs     LoginLogRepository
	sessions SessionStore
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAuthService creates a new auth service with the given dependencies.
// m may be nil.
func NewAuthService(users UserRepository, logs LoginLogRepository, sessions SessionStore, m *metrics.Metrics) AuthService {
	return &authService{
		users:    users,
		logs:     logs,
		sessions: sessions,
		metrics:  m,
		now:      time.Now,
	}
}

// Login verifies credentials and opens a session. Unknown usernames and
// wrong passwords return the same Unauthorized error. A deactivated account
// is only reported after its password verified.
func (s *authService) Login(ctx context.Context, input LoginInput) (*IssuedSession, *User, error) {
	if input.Username == "" || input.Password == "" {
		return nil, nil, apperror.NewValidation("username and password are required")
	}

	input.IP = NormalizeIP(input.IP)

	user, err := s.users.FindByUsername(ctx, input.Username)
	if apperror.Is(err, "not_found") {
		// Burn the same CPU as a real check so response time does not
		// reveal whether the username exists.
		VerifyPassword(input.Password, dummyHash())
		s.metrics.ObserveLogin("invalid_credentials")
		return nil, nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, nil, apperror.NewUnavailable(fmt.Errorf("finding user: %w", err))
	}

	if !VerifyPassword(input.Password, user.PasswordHash) {
		s.metrics.ObserveLogin("invalid_credentials")
		slog.Info("login failed",
			slog.String("user_id", user.ID),
			slog.String("ip", input.IP),
		)
		return nil, nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	if !user.IsActive {
		s.metrics.ObserveLogin("inactive")
		return nil, nil, apperror.NewForbidden(msgDeactivated)
	}

	issued, err := s.sessions.Create(ctx, user.ID, input.IP, input.UserAgent)
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, nil, err
	}

	// Bookkeeping shares one timestamp and is best-effort: the session
	// already exists, so failures are logged rather than returned.
	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, input.IP, now); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}
	if err := s.logs.Insert(ctx, user.ID, input.IP, input.UserAgent, now); err != nil {
		slog.Warn("failed to write login log",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}
	s.upgradeHash(ctx, user, input.Password)

	s.metrics.ObserveLogin("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("ip", input.IP),
	)

	return issued, user, nil
}

// upgradeHash replaces a verified legacy hash with the current argon2id
// parameters.
func (s *authService) upgradeHash(ctx context.Context, user *User, password string) {
	if !NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := HashPassword(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC())
	}
	if err != nil {
		slog.Warn("failed to upgrade password hash",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	user.PasswordHash = hash
	slog.Info("password hash upgraded", slog.String("user_id", user.ID))
}

// Logout revokes the session bound to token. An empty, unknown or already
// revoked token is not an error.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a bearer token to a session. Every non-valid
// resolution becomes the same Unauthorized error; a store failure is
// returned as-is and never authenticates.
func (s *authService) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized(msgAuthRequired)
	}

	res, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		s.metrics.ObserveResolution("error")
		return nil, err
	}

	s.metrics.ObserveResolution(res.Result.String())
	if res.Result != ResolveValid {
		slog.Debug("session rejected", slog.String("reason", res.Result.String()))
		return nil, apperror.NewUnauthorized(msgAuthRequired)
	}
	return res.Session, nil
}

// ChangePassword re-hashes the caller's password after verifying the
// current one. Existing sessions, including the caller's, stay valid.
func (s *authService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return apperror.NewValidation("currentPassword and newPassword are required")
	}
	if len(input.NewPassword) < MinPasswordLength {
		return apperror.NewValidation(fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}
	if input.NewPassword == input.CurrentPassword {
		return apperror.NewValidation("new password must differ from the current password")
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if apperror.Is(err, "not_found") {
		return apperror.NewUnauthorized(msgAuthRequired)
	}
	if err != nil {
		return apperror.NewUnavailable(fmt.Errorf("finding user: %w", err))
	}

	if !VerifyPassword(input.CurrentPassword, user.PasswordHash) {
		return apperror.NewUnauthorized("current password is incorrect")
	}

	hash, err := HashPassword(input.NewPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return apperror.NewUnavailable(fmt.Errorf("updating password: %w", err))
	}

	slog.Info("password changed", slog.String("user_id", user.ID))
	return nil
}

// --- Authorization ---

// CheckRole passes only when the session's role equals role exactly.
func CheckRole(session *Session, role Role) error {
	if session == nil {
		return apperror.NewUnauthorized(msgAuthRequired)
	}
	if session.Role != role {
		return apperror.NewForbidden(fmt.Sprintf("%s role required", role))
	}
	return nil
}

// CheckNotSelf rejects a mutation whose target is the acting principal,
// e.g. an admin deleting or demoting their own account.
func CheckNotSelf(session *Session, targetID, action string) error {
	if session == nil {
		return apperror.NewUnauthorized(msgAuthRequired)
	}
	if session.UserID == targetID {
		return apperror.NewForbidden(fmt.Sprintf("you cannot %s your own account", action))
	}
	return nil
}

// --- Helpers ---

// fallbackDummyHash has the current argon2id cost parameters and no known
// preimage. It stands in if a fresh dummy hash cannot be generated.
const fallbackDummyHash = "$argon2id$v=19$m=65536,t=3,p=4$bot1wOXh2Q0etvvJn7Fbkw$Pddrn+sY1KPfYaKmxulI2gWWKVrQajdhlYGSuv28Bv4"

var (
	dummyHashOnce sync.Once
	dummyHashVal  string
)

// dummyHash is a valid argon2id hash of a random string, verified against
// when the username does not exist.
func dummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHashVal = newDummyHash()
	})
	return dummyHashVal
}

func newDummyHash() string {
	token, err := IssueToken()
	if err == nil {
		var hash string
		if hash, err = HashPassword(token); err == nil {
			return hash
		}
	}
	slog.Error("generating dummy password hash, using fallback", slog.Any("error", err))
	return fallbackDummyHash
}
