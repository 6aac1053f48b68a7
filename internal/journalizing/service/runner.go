package service

import (
	"context"
	"fmt"

	"journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/internal/records/driver"
	"journalize_robot_backend/platform/logger"

	"github.com/google/uuid"
)

// FormSource loads the batch inputs from the metadata store.
type FormSource interface {
	PendingForms(ctx context.Context, formType string) ([]repository.PendingForm, error)
	CaseMetadata(ctx context.Context, webformID string) (*repository.CaseMetadata, error)
}

// RunLog records batch-run history.
type RunLog interface {
	StartRun(ctx context.Context, webformID string) (uuid.UUID, error)
	FinishRun(ctx context.Context, id uuid.UUID, state string, succeeded, manual, failed int) error
}

// Runner iterates the pending forms of one form type through the pipeline,
// sharing a single records session across the whole batch.
type Runner struct {
	source    FormSource
	store     StatusStore
	connector driver.Connector
	creds     driver.Credentials
	pipeline  *Pipeline
	runs      RunLog
	log       *logger.Logger
}

// NewRunner creates a new batch runner.
func NewRunner(source FormSource, store StatusStore, connector driver.Connector, creds driver.Credentials, pipeline *Pipeline, runs RunLog, log *logger.Logger) *Runner {
	return &Runner{
		source:    source,
		store:     store,
		connector: connector,
		creds:     creds,
		pipeline:  pipeline,
		runs:      runs,
		log:       log,
	}
}

// Run processes every pending form for the given webform type, in fetch
// order. One bad form escalates to manual review and the batch continues; a
// system error writes "Failed" for the current form and aborts the batch. The
// session is opened once, after the batch is known to be non-empty, and closed
// exactly once on every path.
func (r *Runner) Run(ctx context.Context, webformID string) error {
	meta, err := r.source.CaseMetadata(ctx, webformID)
	if err != nil {
		return fmt.Errorf("load case metadata: %w", err)
	}

	forms, err := r.source.PendingForms(ctx, webformID)
	if err != nil {
		return fmt.Errorf("fetch pending forms: %w", err)
	}

	if len(forms) == 0 {
		r.log.Info("no pending forms", "webform_id", webformID)
		return nil
	}

	r.log.BatchStarted(webformID, len(forms))

	runID, err := r.runs.StartRun(ctx, webformID)
	if err != nil {
		return fmt.Errorf("record batch run: %w", err)
	}

	session, err := r.connector.Open(ctx, r.creds)
	if err != nil {
		r.finishRun(ctx, runID, repository.RunStateFailed, 0, 0, 0)
		return fmt.Errorf("open records session: %w", err)
	}

	var succeeded, manual, failed int

	for i := range forms {
		form := &forms[i]
		outcome := r.pipeline.Process(ctx, session, form, meta)

		switch outcome.Status {
		case OutcomeSuccess:
			// The pipeline wrote the Successful status as its final step.
			succeeded++

		case OutcomeManualReview:
			manual++
			r.log.Warn("form needs manual processing", "form_id", form.FormID, "reason", outcome.Reason)
			if err := r.store.UpdateFormStatus(ctx, meta.StatusProcedure, repository.StatusManual, form.FormID); err != nil {
				// The status write itself failed: the batch cannot trust the
				// store, so close the session and abort like any fatal error.
				if cerr := session.Close(ctx); cerr != nil {
					r.log.Error("failed to close records session", "error", cerr)
				}
				failed++
				r.finishRun(ctx, runID, repository.RunStateFailed, succeeded, manual, failed)
				return fmt.Errorf("record manual status for form %s: %w", form.FormID, err)
			}
			r.log.WithFormID(form.FormID).FormOutcome(repository.StatusManual)

		case OutcomeFatal:
			// The pipeline already closed the session on this path.
			failed++
			if err := r.store.UpdateFormStatus(ctx, meta.StatusProcedure, repository.StatusFailed, form.FormID); err != nil {
				r.log.DatabaseError("update form status", err)
			} else {
				r.log.WithFormID(form.FormID).FormOutcome(repository.StatusFailed)
			}
			r.finishRun(ctx, runID, repository.RunStateFailed, succeeded, manual, failed)
			return fmt.Errorf("process form %s: %w", form.FormID, outcome.Err)
		}
	}

	if err := session.Close(ctx); err != nil {
		r.log.Error("failed to close records session", "error", err)
	}

	r.finishRun(ctx, runID, repository.RunStateCompleted, succeeded, manual, failed)
	r.log.BatchFinished(webformID, succeeded, manual, failed)

	return nil
}

func (r *Runner) finishRun(ctx context.Context, id uuid.UUID, state string, succeeded, manual, failed int) {
	if err := r.runs.FinishRun(ctx, id, state, succeeded, manual, failed); err != nil {
		r.log.DatabaseError("finish batch run", err)
	}
}
