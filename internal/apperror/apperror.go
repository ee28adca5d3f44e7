// Package apperror defines the application's error taxonomy.
//
// Lower layers return (or wrap) an *AppError whose Err is one of the
// sentinels below. The HTTP layer maps the sentinel to a status code with
// errors.Is and shows AppError.Message to the user.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstreamAuth: the OAuth provider rejected our code or token, or
	// could not be reached while doing so. Maps to 400.
	ErrUpstreamAuth = errors.New("upstream auth error")
	// ErrUpstreamData: the provider answered but the payload was unusable.
	// Maps to 500.
	ErrUpstreamData = errors.New("upstream data error")
	// ErrUnavailable: a credential or dependency we need right now cannot
	// be obtained. The user should retry later.
	ErrUnavailable = errors.New("unavailable")
	// ErrInternal: a failure on our side (usually persistence) that still
	// deserves a specific message instead of the generic one.
	ErrInternal = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, kept for logs
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs a session and there is none.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Unauthorized",
	}
}

func UpstreamAuth(message string, cause error) *AppError {
	return &AppError{Err: ErrUpstreamAuth, Message: message, Cause: cause}
}

func UpstreamData(message string, cause error) *AppError {
	return &AppError{Err: ErrUpstreamData, Message: message, Cause: cause}
}

func Unavailable(message string, cause error) *AppError {
	return &AppError{Err: ErrUnavailable, Message: message, Cause: cause}
}

func Internal(message string, cause error) *AppError {
	return &AppError{Err: ErrInternal, Message: message, Cause: cause}
}
