package store

import (
	"fmt"
	"net/http"
)

// Error is a store-level error with an HTTP-ish status code.
// Errors match with errors.Is when Code and Message agree, so a sentinel
// re-wrapped with WithCause still matches the sentinel.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	// ErrDuplicateNumber is returned when a chapter number is already taken
	// in the book's partition. Callers recompute the number and retry.
	ErrDuplicateNumber = &Error{
		Code:    http.StatusConflict,
		Message: "chapter number already taken",
		Err:     ErrAlreadyExists,
	}

	// ErrDuplicatePermalink is returned when a permalink is already taken.
	ErrDuplicatePermalink = &Error{
		Code:    http.StatusConflict,
		Message: "permalink already taken",
		Err:     ErrAlreadyExists,
	}

	// ErrInvalidReference is returned when a write references a row that
	// does not exist (foreign key violation).
	ErrInvalidReference = &Error{
		Code:    http.StatusBadRequest,
		Message: "referenced entity does not exist",
	}

	// ErrUnavailable marks transient backend failures (busy, closed, throttled).
	ErrUnavailable = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "store unavailable",
	}
)
