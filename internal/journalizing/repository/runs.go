package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Batch run states recorded in the run log.
const (
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// BatchRun is one invocation of the batch runner for a webform type.
type BatchRun struct {
	ID         uuid.UUID
	WebformID  string
	State      string
	Succeeded  int
	Manual     int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StartRun records the start of a batch run and returns its ID.
func (r *Repository) StartRun(ctx context.Context, webformID string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO journalizing.batch_runs (id, webform_id, state, started_at)
		VALUES ($1, $2, $3, now())`

	if _, err := r.pool.Exec(ctx, query, id, webformID, RunStateRunning); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record batch run start: %w", err)
	}

	return id, nil
}

// FinishRun records the terminal state and per-outcome counts of a batch run.
func (r *Repository) FinishRun(ctx context.Context, id uuid.UUID, state string, succeeded, manual, failed int) error {
	query := `
		UPDATE journalizing.batch_runs
		SET state = $2, succeeded = $3, manual = $4, failed = $5, finished_at = now()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, state, succeeded, manual, failed); err != nil {
		return fmt.Errorf("failed to record batch run finish: %w", err)
	}

	return nil
}

// ListRecentRuns returns the most recent batch runs, newest first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]BatchRun, error) {
	query := `
		SELECT id, webform_id, state, succeeded, manual, failed, started_at, finished_at
		FROM journalizing.batch_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch runs: %w", err)
	}
	defer rows.Close()

	runs := make([]BatchRun, 0, limit)
	for rows.Next() {
		var run BatchRun
		if err := rows.Scan(
			&run.ID, &run.WebformID, &run.State, &run.Succeeded, &run.Manual,
			&run.Failed, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch runs: %w", err)
	}

	return runs, nil
}
