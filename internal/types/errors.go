package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the propagation taxonomy shared by every component and the
// bridge's wire envelope.
type ErrorKind string

const (
	KindStoreUnavailable    ErrorKind = "StoreUnavailable"    // surface
	KindNotFound            ErrorKind = "NotFound"            // recover locally where meaningful
	KindInvariantViolation  ErrorKind = "InvariantViolation"  // fatal, propagate
	KindTypeMismatch        ErrorKind = "TypeMismatch"        // recover locally
	KindTimedOut            ErrorKind = "TimedOut"            // surface
	KindConflictAborted     ErrorKind = "ConflictAborted"     // surface after internal retries
	KindFocusDecisionFailed ErrorKind = "FocusDecisionFailed" // swallow, log
)

// Error carries a kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error without a cause.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a typed error around a cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, defaulting to StoreUnavailable for
// untyped errors (the store is the only external failure source in the core).
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindStoreUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
