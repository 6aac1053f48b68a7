// Package apperr provides standardized domain error types for the robot.
// Pipeline steps return these typed errors, and the batch boundary maps them
// to a manual-review escalation or a fatal batch abort.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindValidation indicates a form that fails its preconditions
	// (missing subject identifier, unlisted-subject flag).
	KindValidation
	// KindIdentityAmbiguity indicates the records application could not
	// uniquely resolve the subject.
	KindIdentityAmbiguity
	// KindFilesystem indicates a local staging filesystem failure.
	KindFilesystem
	// KindTransport indicates an attachment download failure.
	KindTransport
	// KindDatabase indicates a metadata-store or records-store failure.
	KindDatabase
	// KindAutomation indicates a records-application driver failure.
	KindAutomation
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind for outcome classification.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns a copy of the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Convenience constructors for common error types.

// Validation creates a precondition-failure error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// IdentityAmbiguity creates a subject-resolution error.
func IdentityAmbiguity(message string) *Error {
	return New(KindIdentityAmbiguity, message)
}

// Filesystem creates a staging filesystem error.
func Filesystem(message string, err error) *Error {
	return Wrap(KindFilesystem, message, err)
}

// Transport creates an attachment download error.
func Transport(message string, err error) *Error {
	return Wrap(KindTransport, message, err)
}

// Database creates a database error.
func Database(message string, err error) *Error {
	return Wrap(KindDatabase, message, err)
}

// Automation creates a records-application driver error.
func Automation(message string, err error) *Error {
	return Wrap(KindAutomation, message, err)
}

// KindOf returns the Kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsManualReview reports whether err is a condition that escalates the form
// to manual handling instead of aborting the batch. Every other error is a
// transient or system error and is treated as fatal.
func IsManualReview(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindIdentityAmbiguity:
		return true
	default:
		return false
	}
}
