package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeMessage_HidesInternalDetail(t *testing.T) {
	err := NewUnavailable(errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, SafeCode(err))
	assert.NotContains(t, SafeMessage(err), "10.0.0.5")
	assert.Contains(t, err.Error(), "connection refused", "Error() keeps the cause for logs")
}

func TestSafeMessage_PlainError(t *testing.T) {
	err := errors.New("SELECT * FROM users failed")

	assert.Equal(t, http.StatusInternalServerError, SafeCode(err))
	assert.Equal(t, "an unexpected error occurred", SafeMessage(err))
}

func TestSafeCode_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewForbidden("admin role required"))

	assert.Equal(t, http.StatusForbidden, SafeCode(err))
	assert.Equal(t, "admin role required", SafeMessage(err))
}

func TestTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code int
	}{
		{"unauthorized", NewUnauthorized("authentication required"), http.StatusUnauthorized},
		{"forbidden", NewForbidden("nope"), http.StatusForbidden},
		{"validation", NewValidation("password too short"), http.StatusBadRequest},
		{"conflict", NewConflict("could not create user"), http.StatusBadRequest},
		{"rate limited", NewRateLimited(30 * time.Second), http.StatusTooManyRequests},
		{"unavailable", NewUnavailable(errors.New("db down")), http.StatusInternalServerError},
		{"not found", NewNotFound("user not found"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := NewRateLimited(42 * time.Second)
	assert.Equal(t, 42*time.Second, err.RetryAfter)
	assert.True(t, Is(err, "rate_limited"))
	assert.False(t, Is(errors.New("x"), "rate_limited"))
}
