package service

import (
	"testing"

	"journalize_robot_backend/internal/journalizing/repository"
)

func TestSelectNoteTemplate(t *testing.T) {
	note := repository.NoteData{
		Message:          repository.NoteTemplate{Message: "consent", CloseNote: true},
		MessageNoConsent: repository.NoteTemplate{Message: "no consent"},
	}

	consented := "1"
	declined := "0"

	tests := []struct {
		name    string
		consent *string
		want    string
	}{
		{"explicit consent", &consented, "consent"},
		{"missing consent field", nil, "consent"},
		{"declined consent", &declined, "no consent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectNoteTemplate(tt.consent, note)
			if got.Message != tt.want {
				t.Fatalf("selectNoteTemplate(%v) = %q, want %q", tt.consent, got.Message, tt.want)
			}
		})
	}
}

func TestRenderNoteMessage(t *testing.T) {
	name := "Tandlægehuset"
	address := "Hovedgaden 1"

	got := renderNoteMessage("Tilmeldt hos [tandlæge], [Adresse]", &name, &address)
	if got != "Tilmeldt hos Tandlægehuset, Hovedgaden 1" {
		t.Fatalf("unexpected rendered note: %q", got)
	}
}

func TestRenderNoteMessageMissingValues(t *testing.T) {
	empty := ""

	got := renderNoteMessage("Tilmeldt hos [tandlæge], [Adresse]", nil, &empty)
	if got != "Tilmeldt hos [Ingen], [Ingen]" {
		t.Fatalf("unexpected rendered note: %q", got)
	}
}

func TestCleanNoteMessage(t *testing.T) {
	got := cleanNoteMessage("Administrativt notat 'Tilmeldt hos Tandlægehuset'", noteBoilerplate)
	if got != "Tilmeldt hos Tandlægehuset" {
		t.Fatalf("unexpected cleaned note: %q", got)
	}
}

func TestFindNodeValue(t *testing.T) {
	raw := []byte(`{
		"data": {
			"navn": "Test Testesen",
			"sektioner": [
				{"felter": {"samtykke": "1"}}
			]
		}
	}`)

	got := findNodeValue(raw, "samtykke")
	if got == nil || *got != "1" {
		t.Fatalf("findNodeValue = %v, want \"1\"", got)
	}

	if findNodeValue(raw, "findes_ikke") != nil {
		t.Fatal("expected nil for an absent node")
	}
	if findNodeValue(nil, "samtykke") != nil {
		t.Fatal("expected nil for an empty payload")
	}
	if findNodeValue([]byte("not json"), "samtykke") != nil {
		t.Fatal("expected nil for a malformed payload")
	}
}

func TestFindNodeValuePrefersDirectKey(t *testing.T) {
	raw := []byte(`{"samtykke": "0", "nested": {"samtykke": "1"}}`)

	got := findNodeValue(raw, "samtykke")
	if got == nil || *got != "0" {
		t.Fatalf("findNodeValue = %v, want the top-level \"0\"", got)
	}
}

func TestFindNodeValueIsDeterministicAcrossSiblings(t *testing.T) {
	// The field appears at the same depth in two sibling branches; the
	// lexicographically first branch must win on every run.
	raw := []byte(`{"b_sektion": {"samtykke": "1"}, "a_sektion": {"samtykke": "0"}}`)

	for i := 0; i < 20; i++ {
		got := findNodeValue(raw, "samtykke")
		if got == nil || *got != "0" {
			t.Fatalf("findNodeValue = %v on run %d, want \"0\" from the first sibling", got, i)
		}
	}
}
