package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures for clients and the error middleware.
type ErrorCode string

const (
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit           ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeTransientDependency ErrorCode = "TRANSIENT_DEPENDENCY"
	ErrCodeComputationFailed   ErrorCode = "COMPUTATION_FAILED"
	ErrCodeConnectionFailed    ErrorCode = "CONNECTION_FAILED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, an HTTP status and arbitrary key-value context
// through the call stack up to the error middleware.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches a key-value pair and returns the error for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError builds an AppError around an underlying cause.
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	appErr := NewAppError(code, message, httpStatus)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, resource+" not found", http.StatusNotFound)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

// NewTransientDependencyError marks failures of a backing store that the
// caller may retry or degrade around.
func NewTransientDependencyError(dependency string, err error) *AppError {
	return WrapError(err, ErrCodeTransientDependency,
		dependency+" temporarily unavailable", http.StatusServiceUnavailable)
}

func NewComputationFailedError(message string, err error) *AppError {
	return WrapError(err, ErrCodeComputationFailed, message, http.StatusInternalServerError)
}

func NewConnectionFailedError(message string, err error) *AppError {
	return WrapError(err, ErrCodeConnectionFailed, message, http.StatusBadGateway)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError finds the first AppError in the chain, nil if there is none.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
