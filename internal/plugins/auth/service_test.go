package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/vpanel/internal/apperror"
	"github.com/keyxmakerx/vpanel/internal/metrics"
)

// mockLoginLogRepo implements LoginLogRepository with overridable functions.
type mockLoginLogRepo struct {
	insertFn func(ctx context.Context, userID, ip, userAgent string, at time.Time) error
}

func (m *mockLoginLogRepo) Insert(ctx context.Context, userID, ip, userAgent string, at time.Time) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, userID, ip, userAgent, at)
	}
	return nil
}

func (m *mockLoginLogRepo) ListRecent(context.Context, int) ([]LoginLog, error) { return nil, nil }
func (m *mockLoginLogRepo) DeleteAll(context.Context) (int64, error)            { return 0, nil }

type testEnv struct {
	svc      *authService
	users    *memUserRepo
	logs     *memLoginLogRepo
	sessRepo *memSessionRepo
	store    SessionStore
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := newMemUserRepo()
	users.add(newTestUser("u-ana", "ana", "correcta123", RoleUser))
	users.add(newTestUser("u-root", "root", "admin-pass-1", RoleAdmin))

	sessRepo := newMemSessionRepo(users)
	store := NewSessionStore(sessRepo, DefaultSessionTTL)
	logs := &memLoginLogRepo{}
	m := metrics.New()

	svc := NewAuthService(users, logs, store, m).(*authService)
	return &testEnv{svc: svc, users: users, logs: logs, sessRepo: sessRepo, store: store, metrics: m}
}

// assertAppError checks that err is an AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T: %v", err, err)
	assert.Equal(t, expectedCode, appErr.Code, "message: %s", appErr.Message)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)

	issued, user, err := env.svc.Login(context.Background(), LoginInput{
		Username: "ana", Password: "correcta123", IP: "203.0.113.4", UserAgent: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, RoleUser, user.Role)
	assert.NotEmpty(t, issued.Token)

	sess, err := env.svc.Authenticate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-ana", sess.UserID)

	stored := env.users.get("u-ana")
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, "203.0.113.4", *stored.LastLoginIP)

	logs, _ := env.logs.ListRecent(context.Background(), 10)
	require.Len(t, logs, 1)
	assert.Equal(t, *stored.LastLoginAt, logs[0].CreatedAt, "bookkeeping shares the login timestamp")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.LoginsTotal.WithLabelValues("success")))
}

func TestLogin_UniformCredentialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, errUnknown := env.svc.Login(ctx, LoginInput{Username: "nobody", Password: "whatever1"})
	_, _, errWrong := env.svc.Login(ctx, LoginInput{Username: "ana", Password: "incorrecta"})
	_, _, errCase := env.svc.Login(ctx, LoginInput{Username: "Ana", Password: "correcta123"})

	for _, err := range []error{errUnknown, errWrong, errCase} {
		assertAppError(t, err, http.StatusUnauthorized)
		assert.Equal(t, msgInvalidCredentials, apperror.SafeMessage(err))
	}
	logs, _ := env.logs.ListRecent(ctx, 10)
	assert.Empty(t, logs, "failed logins are not logged as logins")
}

func TestLogin_Deactivated(t *testing.T) {
	env := newTestEnv(t)
	u := env.users.get("u-ana")
	u.IsActive = false
	env.users.add(u)

	_, _, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "correcta123"})
	assertAppError(t, err, http.StatusForbidden)
	assert.Equal(t, msgDeactivated, apperror.SafeMessage(err))

	_, _, err = env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "wrong-pass"})
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.svc.Login(context.Background(), LoginInput{Username: "ana"})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.users.failErr = errors.New("connection refused")

	_, _, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "correcta123"})
	assertAppError(t, err, http.StatusInternalServerError)
	assert.True(t, apperror.Is(err, "store_unavailable"))
}

func TestLogin_BookkeepingFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.svc.logs = &mockLoginLogRepo{
		insertFn: func(context.Context, string, string, string, time.Time) error {
			return errors.New("login_logs locked")
		},
	}

	issued, _, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "correcta123"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("vieja-clave"), bcrypt.MinCost)
	require.NoError(t, err)
	u := env.users.get("u-ana")
	u.PasswordHash = string(legacy)
	env.users.add(u)

	_, _, err = env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "vieja-clave"})
	require.NoError(t, err)

	upgraded := env.users.get("u-ana").PasswordHash
	assert.False(t, NeedsRehash(upgraded))
	assert.True(t, VerifyPassword("vieja-clave", upgraded))
}

func TestAuthenticate_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	issued, _, err := env.svc.Login(ctx, LoginInput{Username: "ana", Password: "correcta123"})
	require.NoError(t, err)
	require.NoError(t, env.svc.Logout(ctx, issued.Token))

	for _, token := range []string{"", "forged-token", issued.Token} {
		_, err := env.svc.Authenticate(ctx, token)
		assertAppError(t, err, http.StatusUnauthorized)
		assert.Equal(t, msgAuthRequired, apperror.SafeMessage(err))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SessionResolutionsTotal.WithLabelValues("revoked")))
}

func TestAuthenticate_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	issued, _, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "correcta123"})
	require.NoError(t, err)

	env.sessRepo.failErr = errors.New("timeout")
	sess, err := env.svc.Authenticate(context.Background(), issued.Token)
	assert.Nil(t, sess)
	assertAppError(t, err, http.StatusInternalServerError)
}

func TestLogout_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	issued, _, err := env.svc.Login(ctx, LoginInput{Username: "ana", Password: "correcta123"})
	require.NoError(t, err)

	assert.NoError(t, env.svc.Logout(ctx, issued.Token))
	assert.NoError(t, env.svc.Logout(ctx, issued.Token))
	assert.NoError(t, env.svc.Logout(ctx, ""))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		env := newTestEnv(t)
		before := env.users.get("u-ana").PasswordHash

		err := env.svc.ChangePassword(ctx, ChangePasswordInput{
			UserID: "u-ana", CurrentPassword: "incorrecta", NewPassword: "nueva-clave-1",
		})
		assertAppError(t, err, http.StatusUnauthorized)
		assert.Equal(t, before, env.users.get("u-ana").PasswordHash)
	})

	t.Run("too short", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.ChangePassword(ctx, ChangePasswordInput{
			UserID: "u-ana", CurrentPassword: "correcta123", NewPassword: "short",
		})
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("same as current", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.ChangePassword(ctx, ChangePasswordInput{
			UserID: "u-ana", CurrentPassword: "correcta123", NewPassword: "correcta123",
		})
		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("success keeps session", func(t *testing.T) {
		env := newTestEnv(t)
		issued, _, err := env.svc.Login(ctx, LoginInput{Username: "ana", Password: "correcta123"})
		require.NoError(t, err)

		require.NoError(t, env.svc.ChangePassword(ctx, ChangePasswordInput{
			UserID: "u-ana", CurrentPassword: "correcta123", NewPassword: "nueva-clave-1",
		}))

		hash := env.users.get("u-ana").PasswordHash
		assert.True(t, VerifyPassword("nueva-clave-1", hash))
		assert.False(t, VerifyPassword("correcta123", hash))

		_, err = env.svc.Authenticate(ctx, issued.Token)
		assert.NoError(t, err)
	})
}

func TestCheckRole(t *testing.T) {
	admin := &Session{UserID: "u-root", Role: RoleAdmin}
	user := &Session{UserID: "u-ana", Role: RoleUser}

	assert.NoError(t, CheckRole(admin, RoleAdmin))
	assert.NoError(t, CheckRole(user, RoleUser))
	assertAppError(t, CheckRole(user, RoleAdmin), http.StatusForbidden)
	assertAppError(t, CheckRole(admin, RoleUser), http.StatusForbidden)
	assertAppError(t, CheckRole(nil, RoleUser), http.StatusUnauthorized)
}

func TestCheckNotSelf(t *testing.T) {
	admin := &Session{UserID: "u-root", Role: RoleAdmin}

	assert.NoError(t, CheckNotSelf(admin, "u-ana", "delete"))
	err := CheckNotSelf(admin, "u-root", "delete")
	assertAppError(t, err, http.StatusForbidden)
	assert.Contains(t, apperror.SafeMessage(err), "delete")
}

func TestDummyHash_DecodesWithCurrentParams(t *testing.T) {
	for _, hash := range []string{dummyHash(), fallbackDummyHash, newDummyHash()} {
		p, _, key, ok := decodeArgon2id(hash)
		require.True(t, ok, "hash %q", hash)
		assert.Equal(t, currentArgonParams, p)
		assert.Len(t, key, argonKeyLen)
		assert.False(t, NeedsRehash(hash))
		assert.False(t, VerifyPassword("correcta123", hash))
	}
	assert.Equal(t, dummyHash(), dummyHash())
}
