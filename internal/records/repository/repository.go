// Package repository provides read-only existence checks against the records
// application's backing database.
//
// The checks guard every mutating pipeline step so that re-running a form
// after a partial failure never duplicates an already-created document, event
// or journal note. Each predicate is a pure read.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository queries the records application's database.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new records repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DocumentExists reports whether the subject already has a document with the
// given filename, type and description (the description carries the form id).
func (r *Repository) DocumentExists(ctx context.Context, subjectID, filename, documentType, formID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM patient_documents d
			JOIN patients p ON p.id = d.patient_id
			WHERE p.cpr = $1
			  AND d.file_name = $2
			  AND d.document_type = $3
			  AND d.description = $4
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subjectID, filename, documentType, formID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return exists, nil
}

// EventExists reports whether the subject already has an event with the given
// message and clinic. The archived filter applies only when configured for the
// case type.
func (r *Repository) EventExists(ctx context.Context, subjectID, message, clinicName string, isArchived *bool) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM patient_events e
			JOIN patients p ON p.id = e.patient_id
			WHERE p.cpr = $1
			  AND e.message = $2
			  AND e.clinic_name = $3
			  AND ($4::boolean IS NULL OR e.is_archived = $4)
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subjectID, message, clinicName, isArchived).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return exists, nil
}

// NoteExists reports whether the subject already has a journal note with this
// exact text. The caller passes the cleaned note text; the records application
// strips the same boilerplate on ingest.
func (r *Repository) NoteExists(ctx context.Context, subjectID, noteText string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM journal_notes n
			JOIN patients p ON p.id = n.patient_id
			WHERE p.cpr = $1
			  AND n.note_text = $2
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subjectID, noteText).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check journal note existence: %w", err)
	}
	return exists, nil
}
