package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"journalize_robot_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

// CaseMetadata holds the immutable per-case-type configuration. It is loaded
// once per batch and treated as read-only for the batch's duration.
type CaseMetadata struct {
	WebformID         string
	CaseType          string
	ResponseProcedure string // intermediate progress fragments
	StatusProcedure   string // terminal status
	CaseData          CaseData
	DocumentData      DocumentData
}

// CaseData is the structured case-data block from the metadata store.
type CaseData struct {
	Note  NoteData  `json:"note"`
	Event EventData `json:"event"`
}

// NoteData configures the journal-note step.
type NoteData struct {
	ConsentField     string       `json:"consentField"`
	Message          NoteTemplate `json:"noteMessage"`
	MessageNoConsent NoteTemplate `json:"noteMessageNoConsent"`
}

// NoteTemplate is one journal-note text template with its close flag.
type NoteTemplate struct {
	Message   string `json:"message"`
	CloseNote bool   `json:"closeNote"`
}

// EventData configures the event step.
type EventData struct {
	Message    string `json:"message"`
	IsArchived *bool  `json:"isArchived"`
}

// DocumentData configures the document step.
type DocumentData struct {
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
}

// CaseMetadata loads and validates the metadata record for a webform ID.
func (r *Repository) CaseMetadata(ctx context.Context, webformID string) (*CaseMetadata, error) {
	query := `
		SELECT webform_id, case_type, sp_update_response_data, sp_update_process_status,
		       case_data, document_data
		FROM journalizing.metadata
		WHERE webform_id = $1`

	var meta CaseMetadata
	var caseData, documentData []byte
	err := r.pool.QueryRow(ctx, query, webformID).Scan(
		&meta.WebformID, &meta.CaseType, &meta.ResponseProcedure, &meta.StatusProcedure,
		&caseData, &documentData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindDatabase, fmt.Sprintf("no case metadata for webform %q", webformID))
		}
		return nil, fmt.Errorf("failed to load case metadata: %w", err)
	}

	if err := parseCaseBlocks(&meta, caseData, documentData); err != nil {
		return nil, err
	}

	return &meta, nil
}

// parseCaseBlocks decodes the JSON data blocks, normalizes their text and
// validates that every field the pipeline depends on is present.
func parseCaseBlocks(meta *CaseMetadata, caseData, documentData []byte) error {
	if err := json.Unmarshal(caseData, &meta.CaseData); err != nil {
		return fmt.Errorf("failed to parse case data: %w", err)
	}
	if err := json.Unmarshal(documentData, &meta.DocumentData); err != nil {
		return fmt.Errorf("failed to parse document data: %w", err)
	}

	stripNonBreakingSpaces(meta)

	return validateCaseMetadata(meta)
}

// stripNonBreakingSpaces removes non-breaking-space characters from all string
// leaves. The templates are authored in an office suite that inserts them, and
// they would break the downstream note-existence comparison.
func stripNonBreakingSpaces(meta *CaseMetadata) {
	clean := func(s string) string { return strings.ReplaceAll(s, "\u00a0", "") }

	meta.CaseData.Note.ConsentField = clean(meta.CaseData.Note.ConsentField)
	meta.CaseData.Note.Message.Message = clean(meta.CaseData.Note.Message.Message)
	meta.CaseData.Note.MessageNoConsent.Message = clean(meta.CaseData.Note.MessageNoConsent.Message)
	meta.CaseData.Event.Message = clean(meta.CaseData.Event.Message)
	meta.DocumentData.DocumentType = clean(meta.DocumentData.DocumentType)
	meta.DocumentData.FileName = clean(meta.DocumentData.FileName)
}

func validateCaseMetadata(meta *CaseMetadata) error {
	var missing []string

	if meta.ResponseProcedure == "" {
		missing = append(missing, "spUpdateResponseData")
	}
	if meta.StatusProcedure == "" {
		missing = append(missing, "spUpdateProcessStatus")
	}
	if meta.CaseData.Note.Message.Message == "" {
		missing = append(missing, "caseData.note.noteMessage.message")
	}
	if meta.CaseData.Note.MessageNoConsent.Message == "" {
		missing = append(missing, "caseData.note.noteMessageNoConsent.message")
	}
	if meta.CaseData.Event.Message == "" {
		missing = append(missing, "caseData.event.message")
	}
	if meta.DocumentData.DocumentType == "" {
		missing = append(missing, "documentData.documentType")
	}
	if meta.DocumentData.FileName == "" {
		missing = append(missing, "documentData.fileName")
	}

	if len(missing) > 0 {
		return apperr.New(apperr.KindDatabase,
			fmt.Sprintf("case metadata for webform %q is incomplete: missing %s",
				meta.WebformID, strings.Join(missing, ", ")))
	}

	return nil
}
