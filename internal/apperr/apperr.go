// Package apperr holds the failure kinds shared by the services. Handlers
// map them to transport status codes; anything that does not wrap one of
// these sentinels is treated as an internal failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateIdentifier = errors.New("identifier already in use")
	ErrBadCredentials      = errors.New("invalid credentials")
	ErrValidation          = errors.New("validation failed")
)

// Validation returns an error wrapping ErrValidation whose message is the
// formatted detail, suitable for returning to the caller.
func Validation(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }

// Code returns the wire code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "DUPLICATE_IDENTIFIER"
	case errors.Is(err, ErrBadCredentials):
		return "BAD_CREDENTIALS"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// IsInternal reports whether err matches none of the known kinds.
func IsInternal(err error) bool {
	return Code(err) == "INTERNAL_SERVER_ERROR"
}
