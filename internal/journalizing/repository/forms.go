// Package repository provides database operations for the journalizing pipeline.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Form status values persisted through the status stored procedure.
const (
	StatusNew        = "New"
	StatusSuccessful = "Successful"
	StatusManual     = "Manual"
	StatusFailed     = "Failed"
)

// PendingForm represents one submitted web form awaiting processing.
// Subject columns are extracted from the form's JSON payload; the raw payload
// is kept for metadata-driven field lookups (the consent field name varies
// per case type).
type PendingForm struct {
	FormID        string
	ChildCPR      *string
	AdultCPR      *string
	NotInList     *string
	ClinicName    *string
	ClinicAddress *string
	AttachmentURL *string
	FormData      []byte
}

// SubjectIdentifier resolves the subject's citizen identifier. A present child
// field takes precedence over the adult field even when blank; a blank
// identifier escalates the form to manual review instead of journalizing it
// under the adult's identifier.
func (f *PendingForm) SubjectIdentifier() string {
	if f.ChildCPR != nil {
		return *f.ChildCPR
	}
	if f.AdultCPR != nil {
		return *f.AdultCPR
	}
	return ""
}

// NotInListFlagged reports whether the citizen marked that the subject could
// not be found in the list, which forces manual review.
func (f *PendingForm) NotInListFlagged() bool {
	return f.NotInList != nil && *f.NotInList == "1"
}

// Repository provides database operations against the journalizing schema.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new journalizing repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PendingForms fetches all unprocessed forms for the given form type, in
// submission order.
func (r *Repository) PendingForms(ctx context.Context, formType string) ([]PendingForm, error) {
	query := `
		SELECT form_id,
		       form_data->'data'->>'cpr_nummer_barn'                    AS cpr_barn,
		       form_data->'data'->>'cpr_nummer'                         AS cpr_voksen,
		       form_data->'data'->>'mit_barn_kommer_ikke_frem_i_listen' AS not_in_list,
		       form_data->'data'->>'tandlaege'                          AS klinik_navn,
		       form_data->'data'->>'adresse'                            AS klinik_adresse,
		       form_data->'data'->'attachments'->0->>'url'              AS url,
		       form_data
		FROM journalizing.forms
		WHERE (status IS NULL OR status = $1)
		  AND form_type = $2
		ORDER BY received_at, form_id`

	rows, err := r.pool.Query(ctx, query, StatusNew, formType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending forms: %w", err)
	}
	defer rows.Close()

	forms := make([]PendingForm, 0)
	for rows.Next() {
		var form PendingForm
		if err := rows.Scan(
			&form.FormID, &form.ChildCPR, &form.AdultCPR, &form.NotInList,
			&form.ClinicName, &form.ClinicAddress, &form.AttachmentURL, &form.FormData,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending form: %w", err)
		}
		forms = append(forms, form)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending forms: %w", err)
	}

	return forms, nil
}
