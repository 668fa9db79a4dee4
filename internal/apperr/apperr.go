// Package apperr defines the error taxonomy shared by the study and practice services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindCapacity      Kind = "CAPACITY"
	KindAuthorization Kind = "AUTHORIZATION"
)

// Error is a classified error. Use errors.Is against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind and message, so wrapped copies of a sentinel still match.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidArgument     = newError(KindValidation, "invalid argument")
	ErrSessionNotFound     = newError(KindNotFound, "session not found")
	ErrParticipantNotFound = newError(KindNotFound, "participant not found")
	ErrItemNotFound        = newError(KindNotFound, "review item not found")
	ErrSessionFull         = newError(KindCapacity, "session is full")
	ErrCodeSpaceExhausted  = newError(KindCapacity, "session code space exhausted")
	ErrUnauthorized        = newError(KindAuthorization, "only the host can do this")
)

// Invalid returns a validation error with detail
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: ErrInvalidArgument.Message, Cause: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
