// Package apperr defines the Core's error kinds and their HTTP mapping
// per spec.md §7.
package apperr

import "fmt"

// Kind classifies an error for HTTP status mapping and client handling.
type Kind string

const (
	Validation      Kind = "validation"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	Forbidden       Kind = "forbidden"
	PaymentRequired Kind = "payment_required"
	RateLimited     Kind = "rate_limited"
	Dependency      Kind = "dependency"
	Internal        Kind = "internal"
	Timeout         Kind = "timeout"
)

// Error is the Core's typed error, carrying a Kind, a human message,
// optional structured details, and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches validation detail strings.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = details
	return e
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Validationf builds a Validation error.
func Validationf(format string, args ...interface{}) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// Dependencyf wraps a dependency failure (document store, transient cache error).
func Dependencyf(cause error, format string, args ...interface{}) *Error {
	return Wrap(Dependency, fmt.Sprintf(format, args...), cause)
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}

// KindOf returns the Kind of err, defaulting to Internal for unclassified errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}
