// Package apperror defines the classified error taxonomy shared by the
// orchestration core.
//
// Corresponds to: mfateev/temporal-agent-harness internal/models/errors.go
// (ActivityError/ErrorType), re-expressed without a Temporal dependency —
// classification is recovered with errors.As against this package's typed
// error instead of temporal.ApplicationError.Type()/Details().
package apperror

import "fmt"

// Kind classifies an error for handling/logging purposes.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindCancelled  Kind = "cancelled"
	KindDenied     Kind = "denied"
	KindInternal   Kind = "internal"
)

// Error is a classified, wrapped error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a classified error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound builds a KindNotFound error for the given entity/id.
func NotFound(entity, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// IsKind reports whether err (or one it wraps) is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
