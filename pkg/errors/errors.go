package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrNoCredential
	ErrCredentialNotFound
	ErrDispatchFailed
	ErrMetricInput
)

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// NoCredentialAvailable signals that neither the requested user token nor a
// workspace bot token could produce a non-empty secret.
func NoCredentialAvailable(workspace string) *AppError {
	return &AppError{
		Code:    ErrNoCredential,
		Message: fmt.Sprintf("no credential available for workspace %s", workspace),
	}
}

// CredentialNotFound signals a sender referenced a user token that does not
// exist. Distinct from NoCredentialAvailable: the caller asked for a specific
// identity rather than whatever the workspace has configured.
func CredentialNotFound(userID string) *AppError {
	return &AppError{
		Code:    ErrCredentialNotFound,
		Message: fmt.Sprintf("credential not found for user %s", userID),
	}
}

func DispatchFailed(channel string, err error) *AppError {
	return &AppError{
		Code:    ErrDispatchFailed,
		Message: fmt.Sprintf("dispatch to %s failed", channel),
		Err:     err,
	}
}

func MetricInputInvalid(message string) *AppError {
	return &AppError{
		Code:    ErrMetricInput,
		Message: message,
	}
}

// IsCode reports whether err wraps an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
