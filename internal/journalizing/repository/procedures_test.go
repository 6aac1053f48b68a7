package repository

import (
	"context"
	"testing"
)

// Invalid references must be rejected before any query is built; the
// repository has no live pool in these tests, so reaching the database would
// panic.
func TestExecProcedureRejectsInvalidReferences(t *testing.T) {
	r := New(nil)

	bad := []string{
		"",
		"journalizing.update_process_status; DROP TABLE forms",
		"1starts_with_digit",
		"too.many.parts",
		"spaced name",
	}
	for _, procedure := range bad {
		if err := r.ExecProcedure(context.Background(), procedure, nil); err == nil {
			t.Fatalf("expected %q to be rejected", procedure)
		}
	}
}

func TestExecProcedureRejectsInvalidParameterNames(t *testing.T) {
	r := New(nil)

	bad := []string{"", "a b", "schema.name", "x => 1"}
	for _, name := range bad {
		err := r.ExecProcedure(context.Background(), "journalizing.update_process_status", []Param{
			{Name: name, Value: "x"},
		})
		if err == nil {
			t.Fatalf("expected parameter name %q to be rejected", name)
		}
	}
}
