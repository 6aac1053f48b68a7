// Package service implements the per-form processing pipeline and the batch
// runner that drives it.
package service

import (
	"context"
	"errors"
	"path/filepath"

	"journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/internal/records/driver"
	"journalize_robot_backend/platform/apperr"
	"journalize_robot_backend/platform/logger"
)

// OutcomeStatus classifies how a single form was handled.
type OutcomeStatus int

const (
	// OutcomeSuccess means every pipeline step was applied or already present.
	OutcomeSuccess OutcomeStatus = iota
	// OutcomeManualReview means the form needs a human and the batch continues.
	OutcomeManualReview
	// OutcomeFatal means a system error occurred; the session is closed and
	// the batch aborts.
	OutcomeFatal
)

// Outcome is the tagged result of processing one form.
type Outcome struct {
	Status OutcomeStatus
	Reason string
	Err    error
}

// Step names persisted in progress fragments.
const (
	stepDocument    = "Document"
	stepEvent       = "Event"
	stepJournalNote = "JournalNote"
)

// IdempotencyChecker answers whether a mutating step has already been applied,
// by natural key, against the records application's backing store.
type IdempotencyChecker interface {
	DocumentExists(ctx context.Context, subjectID, filename, documentType, formID string) (bool, error)
	EventExists(ctx context.Context, subjectID, message, clinicName string, isArchived *bool) (bool, error)
	NoteExists(ctx context.Context, subjectID, noteText string) (bool, error)
}

// ArtifactStager stages and releases the per-form attachment file.
type ArtifactStager interface {
	Stage(ctx context.Context, url, destination string) error
	Release(destination string) error
}

// StatusStore persists per-form statuses and progress fragments through the
// case's stored procedures.
type StatusStore interface {
	UpdateFormStatus(ctx context.Context, procedure, status, formID string) error
	RecordProgress(ctx context.Context, procedure, stepName string, fragment any, formID string) error
}

// Pipeline applies the document, event, journal-note and status steps to one
// form, each gated by an existence check.
type Pipeline struct {
	checker    IdempotencyChecker
	stager     ArtifactStager
	store      StatusStore
	stagingDir string
	log        *logger.Logger
}

// NewPipeline creates a new form pipeline.
func NewPipeline(checker IdempotencyChecker, stager ArtifactStager, store StatusStore, stagingDir string, log *logger.Logger) *Pipeline {
	return &Pipeline{
		checker:    checker,
		stager:     stager,
		store:      store,
		stagingDir: stagingDir,
		log:        log,
	}
}

// Process handles one form against an open records session.
//
// Precondition failures and identity ambiguity yield OutcomeManualReview
// without any mutating call. Any other failure closes the session and yields
// OutcomeFatal; the session's state is no longer trusted after an error. The
// staged artifact is released on every exit path.
func (p *Pipeline) Process(ctx context.Context, session driver.Session, form *repository.PendingForm, meta *repository.CaseMetadata) Outcome {
	log := p.log.WithFormID(form.FormID)

	subjectID := form.SubjectIdentifier()
	if subjectID == "" {
		return Outcome{Status: OutcomeManualReview, Reason: "no subject identifier on form"}
	}
	if form.NotInListFlagged() {
		return Outcome{Status: OutcomeManualReview, Reason: "subject marked as not found in list"}
	}

	if err := session.OpenSubject(ctx, subjectID); err != nil {
		if apperr.IsManualReview(err) {
			return Outcome{Status: OutcomeManualReview, Reason: err.Error()}
		}
		return p.fatal(ctx, session, log, err)
	}

	return p.processSubject(ctx, session, form, meta, subjectID, log)
}

// processSubject runs the mutating steps once the subject view is open. The
// deferred Release is the guaranteed-cleanup boundary for the staged artifact.
func (p *Pipeline) processSubject(ctx context.Context, session driver.Session, form *repository.PendingForm, meta *repository.CaseMetadata, subjectID string, log *logger.Logger) Outcome {
	destination := filepath.Join(p.stagingDir, meta.DocumentData.FileName)
	defer func() {
		if err := p.stager.Release(destination); err != nil {
			log.Error("failed to release staged artifact", "path", destination, "error", err)
		}
	}()

	if form.AttachmentURL == nil || *form.AttachmentURL == "" {
		return p.fatal(ctx, session, log, errors.New("form has no attachment url"))
	}
	if err := p.stager.Stage(ctx, *form.AttachmentURL, destination); err != nil {
		return p.fatal(ctx, session, log, err)
	}

	// Document step.
	exists, err := p.checker.DocumentExists(ctx, subjectID, meta.DocumentData.FileName, meta.DocumentData.DocumentType, form.FormID)
	if err != nil {
		return p.fatal(ctx, session, log, err)
	}
	if !exists {
		if err := session.CreateDocument(ctx, destination, meta.DocumentData.DocumentType, form.FormID); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		if err := p.store.RecordProgress(ctx, meta.ResponseProcedure, stepDocument, map[string]bool{"DocumentCreated": true}, form.FormID); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		log.StepApplied("document")
	}

	// Event step.
	clinicName, err := session.GetPrimaryClinic(ctx)
	if err != nil {
		return p.fatal(ctx, session, log, err)
	}
	exists, err = p.checker.EventExists(ctx, subjectID, meta.CaseData.Event.Message, clinicName, meta.CaseData.Event.IsArchived)
	if err != nil {
		return p.fatal(ctx, session, log, err)
	}
	if !exists {
		if err := session.CreateEvent(ctx, meta.CaseData.Event.Message, clinicName); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		if err := p.store.RecordProgress(ctx, meta.ResponseProcedure, stepEvent, map[string]bool{"EventCreated": true}, form.FormID); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		log.StepApplied("event")
	}

	// Journal-note step. The existence check uses the cleaned text; the
	// created note carries the rendered text, which the records application
	// cleans the same way on ingest.
	consentValue := findNodeValue(form.FormData, meta.CaseData.Note.ConsentField)
	template := selectNoteTemplate(consentValue, meta.CaseData.Note)
	rendered := renderNoteMessage(template.Message, form.ClinicName, form.ClinicAddress)
	cleaned := cleanNoteMessage(rendered, noteBoilerplate)

	exists, err = p.checker.NoteExists(ctx, subjectID, cleaned)
	if err != nil {
		return p.fatal(ctx, session, log, err)
	}
	if !exists {
		if err := session.CreateNote(ctx, rendered, template.CloseNote); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		if err := p.store.RecordProgress(ctx, meta.ResponseProcedure, stepJournalNote, map[string]bool{"JournalNoteCreated": true}, form.FormID); err != nil {
			return p.fatal(ctx, session, log, err)
		}
		log.StepApplied("journal_note")
	}

	// Terminal status, then close the subject view.
	if err := p.store.UpdateFormStatus(ctx, meta.StatusProcedure, repository.StatusSuccessful, form.FormID); err != nil {
		return p.fatal(ctx, session, log, err)
	}
	if err := session.CloseSubjectWindow(ctx); err != nil {
		return p.fatal(ctx, session, log, err)
	}

	log.FormOutcome(repository.StatusSuccessful)

	return Outcome{Status: OutcomeSuccess}
}

// fatal converts a system error into a fatal outcome. The session is closed
// here, before the outcome propagates; the batch runner must not close it
// again on this path.
func (p *Pipeline) fatal(ctx context.Context, session driver.Session, log *logger.Logger, err error) Outcome {
	log.Error("form processing failed, closing records session", "error", err)
	if cerr := session.Close(ctx); cerr != nil {
		log.Error("failed to close records session", "error", cerr)
	}
	return Outcome{Status: OutcomeFatal, Err: err}
}
