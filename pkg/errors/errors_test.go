package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "event type is required", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: event type is required", err.Error())
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrCodeInternal, "insert failed", http.StatusInternalServerError)

	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "bad payload", http.StatusBadRequest).
		WithContext("field", "amount").
		WithContext("value", -5)

	assert.Equal(t, "amount", err.Context["field"])
	assert.Equal(t, -5, err.Context["value"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name       string
		err        *AppError
		code       ErrorCode
		httpStatus int
	}{
		{"invalid input", NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("dashboard snapshot"), ErrCodeNotFound, http.StatusNotFound},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"transient dependency", NewTransientDependencyError("redis", cause), ErrCodeTransientDependency, http.StatusServiceUnavailable},
		{"computation failed", NewComputationFailedError("snapshot failed", cause), ErrCodeComputationFailed, http.StatusInternalServerError},
		{"connection failed", NewConnectionFailedError("upstream gone", cause), ErrCodeConnectionFailed, http.StatusBadGateway},
		{"internal", NewInternalError("unexpected"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewInvalidInputError("bad")))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("tool")

	assert.Equal(t, appErr, GetAppError(appErr))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}

func TestGetAppError_UnwrapsChain(t *testing.T) {
	appErr := NewTransientDependencyError("redis", errors.New("connection refused"))
	wrapped := fmt.Errorf("enqueue: %w", appErr)

	got := GetAppError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeTransientDependency, got.Code)
}
