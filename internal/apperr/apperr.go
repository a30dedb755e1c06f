// Package apperr defines the error kinds surfaced by the identity services and
// their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrUnverified       = errors.New("unverified")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrExpiredOrMissing = errors.New("otp expired or missing")
	ErrInvalidCode      = errors.New("invalid otp code")
	ErrTooManyAttempts  = errors.New("too many attempts")
)

// Error carries a kind and the short message rendered to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New builds an Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a missing or malformed field.
func Validation(message string) *Error { return New(ErrValidation, message) }

// Conflict reports a duplicate resource or an outstanding code.
func Conflict(message string) *Error { return New(ErrConflict, message) }

// NotFound reports a missing resource.
func NotFound(message string) *Error { return New(ErrNotFound, message) }

// Unverified reports a gated operation attempted without a live confirmation.
func Unverified(message string) *Error { return New(ErrUnverified, message) }

// Unauthorized reports bad credentials or an unusable token.
func Unauthorized(message string) *Error { return New(ErrUnauthorized, message) }

// Forbidden reports an authenticated caller lacking the required role.
func Forbidden(message string) *Error { return New(ErrForbidden, message) }

// Status maps an error to its HTTP status. Errors without a known kind are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrUnverified),
		errors.Is(err, ErrExpiredOrMissing),
		errors.Is(err, ErrInvalidCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Unknown errors are hidden.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
