// Package driver defines the session port for the dental records application
// and its automation-bridge implementation.
//
// The records application is a stateful desktop program; all interaction goes
// through one authenticated session that exposes a single subject view at a
// time. Subject-resolution ambiguity is signalled as a distinguished
// manual-processing condition, never as a plain failure.
package driver

import "context"

// Credentials authenticate the robot against the records application.
type Credentials struct {
	Username string
	Password string
}

// Session is one authenticated connection to the records application, shared
// across every form in a batch. It is owned by the batch runner and must be
// closed exactly once.
type Session interface {
	// OpenSubject resolves and opens the subject's record by citizen
	// identifier. An ambiguous or unknown subject returns an
	// identity-ambiguity error.
	OpenSubject(ctx context.Context, identifier string) error

	// CreateDocument files the staged artifact in the subject's document
	// cabinet under the given type and description.
	CreateDocument(ctx context.Context, path, documentType, description string) error

	// GetPrimaryClinic returns the subject's primary clinic name.
	GetPrimaryClinic(ctx context.Context) (string, error)

	// CreateEvent creates an event with the given message for the clinic.
	CreateEvent(ctx context.Context, message, clinicName string) error

	// CreateNote attaches a journal note to the subject's case, optionally
	// marking it complete.
	CreateNote(ctx context.Context, text string, closeNote bool) error

	// CloseSubjectWindow closes the subject's view without ending the session.
	CloseSubjectWindow(ctx context.Context) error

	// Close ends the session.
	Close(ctx context.Context) error
}

// Connector opens sessions against the records application.
type Connector interface {
	Open(ctx context.Context, creds Credentials) (Session, error)
}
