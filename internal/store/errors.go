package store

import "fmt"

// Error is a storage error derived from one of the sentinels below.
type Error struct {
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	kind string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error derived from the same sentinel, so
// errors.Is(ErrNotFound.WithMessage("x"), ErrNotFound) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.kind == "" || t.kind == "" {
		return e == t
	}
	return e.kind == t.kind
}

// Retryable reports whether repeating the whole unit of work may succeed.
func (e *Error) Retryable() bool {
	return e.kind == ErrConflict.kind || e.kind == ErrUnavailable.kind
}

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Message: msg,
		Err:     e.Err,
		kind:    e.kind,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Message: e.Message,
		Err:     err,
		kind:    e.kind,
	}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Message: "resource not found",
		kind:    "not_found",
	}

	ErrAlreadyExists = &Error{
		Message: "resource already exists",
		kind:    "already_exists",
	}

	// ErrConflict is returned when a commit lost a race with a concurrent transaction.
	ErrConflict = &Error{
		Message: "transaction conflict",
		kind:    "conflict",
	}

	// ErrUnavailable is returned when the database cannot serve the request at all.
	ErrUnavailable = &Error{
		Message: "store unavailable",
		kind:    "unavailable",
	}
)
