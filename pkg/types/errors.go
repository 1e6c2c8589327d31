package types

import "errors"

// Code is a machine-readable error kind.
type Code string

// Error kinds surfaced by the core.
const (
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConflict          Code = "CONFLICT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
)

// Error is the domain error type. Two errors match under errors.Is when
// their codes are equal, so callers compare against the sentinels below.
type Error struct {
	Code    Code   // Machine-readable kind.
	Message string // Internal message for logs.
	Cause   error  // Wrapped underlying error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrForbidden         = New(CodeForbidden, "forbidden")
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid state transition")
	ErrConflict          = New(CodeConflict, "conflict")
	ErrNotFound          = New(CodeNotFound, "entity not found")
	ErrInvalidArgument   = New(CodeInvalidArgument, "invalid argument")
)

// ErrVersionConflict is returned by storage when a compare-and-swap commit
// observes a thread version other than the expected one.
var ErrVersionConflict = New(CodeConflict, "offer thread version conflict")

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether the operation that produced err may be retried
// after re-reading current state. Only CONFLICT is retryable.
func Retryable(err error) bool {
	return CodeOf(err) == CodeConflict
}
