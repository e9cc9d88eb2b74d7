package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a session or application error.
type ErrorCode string

const (
	// ErrCodeExpired indicates the local credential aged past the session TTL.
	// Detected locally; no network call is involved.
	ErrCodeExpired ErrorCode = "expired"
	// ErrCodeNotFound indicates the remote directory has no account for the
	// credential's identifier.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeRoleMismatch indicates a valid identity whose role category does
	// not belong to this portal's operating mode.
	ErrCodeRoleMismatch ErrorCode = "role_mismatch"
	// ErrCodeServerError indicates the remote directory failed; transient.
	ErrCodeServerError ErrorCode = "server_error"
	// ErrCodeNetworkUnavailable indicates the remote directory was unreachable; transient.
	ErrCodeNetworkUnavailable ErrorCode = "network_unavailable"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
)

// AppError is a structured application error with a code, a human-readable
// message, and an optional cause. It supports errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending field for validation errors (optional).
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Expired creates a new Expired error.
func Expired(message string) *AppError {
	return &AppError{Code: ErrCodeExpired, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// RoleMismatch creates a new RoleMismatch error.
func RoleMismatch(message string) *AppError {
	return &AppError{Code: ErrCodeRoleMismatch, Message: message}
}

// ServerError creates a new ServerError error wrapping the remote failure.
func ServerError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeServerError, Message: message, Cause: cause}
}

// NetworkUnavailable creates a new NetworkUnavailable error wrapping the transport failure.
func NetworkUnavailable(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeNetworkUnavailable, Message: message, Cause: cause}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsExpired checks if an error is an Expired error.
func IsExpired(err error) bool { return isCode(err, ErrCodeExpired) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsRoleMismatch checks if an error is a RoleMismatch error.
func IsRoleMismatch(err error) bool { return isCode(err, ErrCodeRoleMismatch) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsTransient reports whether the error is non-destructive to local session
// state: the remote directory failed or was unreachable, so the locally
// persisted credential must be kept and the call retried later. Destructive
// codes (expired, not_found, role_mismatch) are deliberately excluded.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeServerError, ErrCodeNetworkUnavailable, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the human-readable message from an AppError, or a
// generic fallback for unclassified errors. Session failures surface to the
// browser as a message field, never as a raw error.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}
