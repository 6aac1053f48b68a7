// Package logger provides structured logging infrastructure for the robot.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RunIDKey is the context key for the batch run ID
	RunIDKey contextKey = "run_id"
	// FormIDKey is the context key for the form being processed
	FormIDKey contextKey = "form_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports run_id and form_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		newLogger = newLogger.WithRunID(runID)
	}

	if formID, ok := ctx.Value(FormIDKey).(string); ok && formID != "" {
		newLogger = newLogger.WithFormID(formID)
	}

	return newLogger
}

// WithRunID returns a logger with the batch run ID
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("run_id", runID)),
	}
}

// WithFormID returns a logger with the form ID
func (l *Logger) WithFormID(formID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("form_id", formID)),
	}
}

// BatchStarted logs the start of a batch run
func (l *Logger) BatchStarted(webformID string, pendingForms int) {
	l.Info("batch_started",
		slog.String("webform_id", webformID),
		slog.Int("pending_forms", pendingForms),
	)
}

// BatchFinished logs the end of a batch run
func (l *Logger) BatchFinished(webformID string, succeeded, manual, failed int) {
	l.Info("batch_finished",
		slog.String("webform_id", webformID),
		slog.Int("succeeded", succeeded),
		slog.Int("manual", manual),
		slog.Int("failed", failed),
	)
}

// StepApplied logs a pipeline step that actually mutated the records
// application. The caller's logger carries the form ID.
func (l *Logger) StepApplied(step string) {
	l.Info("step_applied",
		slog.String("step", step),
	)
}

// FormOutcome logs the terminal status written for a form. The caller's
// logger carries the form ID.
func (l *Logger) FormOutcome(status string) {
	l.Info("form_outcome",
		slog.String("status", status),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
