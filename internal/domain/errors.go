package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Every failure produced by the service
// layer wraps exactly one of these so the boundary can map it.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInvalidInput          = errors.New("invalid input")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
)

// Error carries a user-readable message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Kind reports which taxonomy entry err belongs to, or nil for opaque errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrDependencyUnavailable,
		ErrUnauthorized,
		ErrForbidden,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
