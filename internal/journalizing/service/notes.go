package service

import (
	"encoding/json"
	"sort"
	"strings"

	"journalize_robot_backend/internal/journalizing/repository"
)

// Placeholders substituted into the journal-note templates.
const (
	placeholderClinicName    = "[tandlæge]"
	placeholderClinicAddress = "[Adresse]"
	placeholderMissing       = "[Ingen]"
)

// noteBoilerplate is stripped from the rendered note before the existence
// check; the records application drops the same fragments on ingest.
var noteBoilerplate = []string{"Administrativt notat ", "'"}

// selectNoteTemplate picks the note template based on the consent value.
// "1" or a missing value selects the consent template; any other value the
// no-consent template.
func selectNoteTemplate(consentValue *string, note repository.NoteData) repository.NoteTemplate {
	if consentValue == nil || *consentValue == "1" {
		return note.Message
	}
	return note.MessageNoConsent
}

// renderNoteMessage substitutes the clinic placeholders into a template.
func renderNoteMessage(template string, clinicName, clinicAddress *string) string {
	rendered := strings.ReplaceAll(template, placeholderClinicName, stringOrMissing(clinicName))
	return strings.ReplaceAll(rendered, placeholderClinicAddress, stringOrMissing(clinicAddress))
}

// cleanNoteMessage removes the given substrings from text.
func cleanNoteMessage(text string, substrings []string) string {
	for _, substring := range substrings {
		text = strings.ReplaceAll(text, substring, "")
	}
	return text
}

func stringOrMissing(value *string) string {
	if value == nil || *value == "" {
		return placeholderMissing
	}
	return *value
}

// findNodeValue searches the raw form payload for the first string value under
// the given node name, at any depth. The consent field's location inside the
// form data varies per webform, so the lookup cannot be typed.
func findNodeValue(raw []byte, node string) *string {
	if len(raw) == 0 || node == "" {
		return nil
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	return searchNode(data, node)
}

func searchNode(data any, target string) *string {
	switch v := data.(type) {
	case map[string]any:
		if value, ok := v[target]; ok {
			if s, ok := value.(string); ok {
				return &s
			}
		}
		// Sibling subtrees are visited in key order so the same payload
		// always resolves to the same value.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if result := searchNode(v[key], target); result != nil {
				return result
			}
		}
	case []any:
		for _, item := range v {
			if result := searchNode(item, target); result != nil {
				return result
			}
		}
	}
	return nil
}
