package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Param is one named, typed stored-procedure argument.
type Param struct {
	Name  string
	Value any
}

// Procedure references arrive as data from the metadata store, so they are
// validated against a strict identifier shape before being interpolated.
var identRef = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ExecProcedure invokes a stored procedure with named-notation arguments.
func (r *Repository) ExecProcedure(ctx context.Context, procedure string, params []Param) error {
	if !identRef.MatchString(procedure) {
		return fmt.Errorf("invalid stored procedure reference %q", procedure)
	}

	args := make([]any, 0, len(params))
	notation := make([]string, 0, len(params))
	for i, p := range params {
		if !identRef.MatchString(p.Name) || strings.Contains(p.Name, ".") {
			return fmt.Errorf("invalid stored procedure parameter name %q", p.Name)
		}
		notation = append(notation, fmt.Sprintf("%s => $%d", p.Name, i+1))
		args = append(args, p.Value)
	}

	query := fmt.Sprintf("CALL %s(%s)", procedure, strings.Join(notation, ", "))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute procedure %s: %w", procedure, err)
	}

	return nil
}

// UpdateFormStatus records a form's terminal status through the case's status
// stored procedure.
func (r *Repository) UpdateFormStatus(ctx context.Context, procedure, status, formID string) error {
	return r.ExecProcedure(ctx, procedure, []Param{
		{Name: "Status", Value: status},
		{Name: "form_id", Value: formID},
	})
}

// RecordProgress persists an intermediate progress fragment through the case's
// response stored procedure. The fragment supports resuming after a partial
// failure.
func (r *Repository) RecordProgress(ctx context.Context, procedure, stepName string, fragment any, formID string) error {
	data, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("failed to encode progress fragment: %w", err)
	}

	return r.ExecProcedure(ctx, procedure, []Param{
		{Name: "StepName", Value: stepName},
		{Name: "JsonFragment", Value: string(data)},
		{Name: "form_id", Value: formID},
	})
}
