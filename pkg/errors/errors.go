package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"

	// State machine invariant errors
	ErrCodeInvalidTransition        ErrorCode = "INVALID_TRANSITION"
	ErrCodeSessionBlocked           ErrorCode = "SESSION_BLOCKED"
	ErrCodeInvalidSessionTransition ErrorCode = "INVALID_SESSION_TRANSITION"

	// Login boundary errors
	ErrCodeDeviceNotFound    ErrorCode = "DEVICE_NOT_FOUND"
	ErrCodeDeviceNotOwned    ErrorCode = "DEVICE_NOT_OWNED"
	ErrCodeSessionNotAllowed ErrorCode = "SESSION_NOT_ALLOWED"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error.
// Returns nil if the error is not a structured Error.
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeForbidden, ErrCodeDeviceNotOwned, ErrCodeSessionNotAllowed:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeNotFound, ErrCodeDeviceNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeSessionBlocked,
		ErrCodeInvalidSessionTransition:
		return http.StatusConflict

	// 429 Too Many Requests
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	// 500 Internal Server Error (default)
	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the HTTP status for any error, structured or not
func StatusCode(err error) int {
	return MapErrorCodeToHTTPStatus(GetCode(err))
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}
