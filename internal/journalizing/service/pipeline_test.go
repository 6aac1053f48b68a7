package service

import (
	"context"
	"errors"
	"testing"

	"journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/platform/apperr"
	"journalize_robot_backend/platform/logger"
)

type fakeSession struct {
	openSubjectErr  error
	clinicName      string
	clinicErr       error
	createDocErr    error
	createEventErr  error
	createNoteErr   error
	closeWindowErr  error

	openSubjectCalls int
	createDocCalls   int
	createEventCalls int
	createNoteCalls  int
	closeWindowCalls int
	closeCalls       int

	lastNoteText  string
	lastNoteClose bool
	lastDocPath   string
}

func (s *fakeSession) OpenSubject(_ context.Context, _ string) error {
	s.openSubjectCalls++
	return s.openSubjectErr
}

func (s *fakeSession) CreateDocument(_ context.Context, path, _, _ string) error {
	s.createDocCalls++
	s.lastDocPath = path
	return s.createDocErr
}

func (s *fakeSession) GetPrimaryClinic(_ context.Context) (string, error) {
	if s.clinicErr != nil {
		return "", s.clinicErr
	}
	return s.clinicName, nil
}

func (s *fakeSession) CreateEvent(_ context.Context, _, _ string) error {
	s.createEventCalls++
	return s.createEventErr
}

func (s *fakeSession) CreateNote(_ context.Context, text string, closeNote bool) error {
	s.createNoteCalls++
	s.lastNoteText = text
	s.lastNoteClose = closeNote
	return s.createNoteErr
}

func (s *fakeSession) CloseSubjectWindow(_ context.Context) error {
	s.closeWindowCalls++
	return s.closeWindowErr
}

func (s *fakeSession) Close(_ context.Context) error {
	s.closeCalls++
	return nil
}

type fakeChecker struct {
	docExists   bool
	eventExists bool
	noteExists  bool
	checkErr    error

	lastNoteQuery string
}

func (c *fakeChecker) DocumentExists(_ context.Context, _, _, _, _ string) (bool, error) {
	return c.docExists, c.checkErr
}

func (c *fakeChecker) EventExists(_ context.Context, _, _, _ string, _ *bool) (bool, error) {
	return c.eventExists, c.checkErr
}

func (c *fakeChecker) NoteExists(_ context.Context, _, noteText string) (bool, error) {
	c.lastNoteQuery = noteText
	return c.noteExists, c.checkErr
}

type fakeStager struct {
	stageErr error
	staged   []string
	released []string
}

func (s *fakeStager) Stage(_ context.Context, _, destination string) error {
	if s.stageErr != nil {
		return s.stageErr
	}
	s.staged = append(s.staged, destination)
	return nil
}

func (s *fakeStager) Release(destination string) error {
	s.released = append(s.released, destination)
	return nil
}

type statusWrite struct {
	procedure string
	status    string
	formID    string
}

type progressWrite struct {
	procedure string
	step      string
	formID    string
}

type fakeStore struct {
	statusErr error
	statuses  []statusWrite
	progress  []progressWrite
}

func (s *fakeStore) UpdateFormStatus(_ context.Context, procedure, status, formID string) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statuses = append(s.statuses, statusWrite{procedure, status, formID})
	return nil
}

func (s *fakeStore) RecordProgress(_ context.Context, procedure, stepName string, _ any, formID string) error {
	s.progress = append(s.progress, progressWrite{procedure, stepName, formID})
	return nil
}

func strPtr(s string) *string { return &s }

func testMetadata() *repository.CaseMetadata {
	archived := false
	return &repository.CaseMetadata{
		WebformID:         "tilmelding_tandpleje",
		CaseType:          "Tandpleje",
		ResponseProcedure: "journalizing.update_response_data",
		StatusProcedure:   "journalizing.update_process_status",
		CaseData: repository.CaseData{
			Note: repository.NoteData{
				ConsentField: "samtykke",
				Message: repository.NoteTemplate{
					Message:   "Administrativt notat 'Tilmeldt hos [tandlæge], [Adresse]'",
					CloseNote: true,
				},
				MessageNoConsent: repository.NoteTemplate{
					Message:   "Administrativt notat 'Tilmeldt uden samtykke hos [tandlæge]'",
					CloseNote: false,
				},
			},
			Event: repository.EventData{Message: "Tilvalg af privat tandpleje", IsArchived: &archived},
		},
		DocumentData: repository.DocumentData{DocumentType: "Tilmeldingsblanket", FileName: "tilmelding.pdf"},
	}
}

func testForm() repository.PendingForm {
	return repository.PendingForm{
		FormID:        "form-1",
		ChildCPR:      strPtr("0101011234"),
		ClinicName:    strPtr("Tandlægehuset"),
		ClinicAddress: strPtr("Hovedgaden 1"),
		AttachmentURL: strPtr("https://forms.example.com/attachments/1"),
		FormData:      []byte(`{"data":{"samtykke":"1"}}`),
	}
}

func newTestPipeline(checker *fakeChecker, stager *fakeStager, store *fakeStore) *Pipeline {
	return NewPipeline(checker, stager, store, "/staging", logger.New("development"))
}

func TestProcessMissingSubjectIdentifierIsManualWithoutSessionCalls(t *testing.T) {
	session := &fakeSession{}
	store := &fakeStore{}
	pipeline := newTestPipeline(&fakeChecker{}, &fakeStager{}, store)

	form := testForm()
	form.ChildCPR = nil
	form.AdultCPR = nil

	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeManualReview {
		t.Fatalf("expected manual review, got %v", outcome.Status)
	}
	if session.openSubjectCalls != 0 || session.createDocCalls != 0 || session.createEventCalls != 0 || session.createNoteCalls != 0 {
		t.Fatal("expected no session calls for a form without a subject identifier")
	}
	if len(store.statuses) != 0 {
		t.Fatalf("expected no status writes from the pipeline, got %v", store.statuses)
	}
}

func TestProcessBlankChildCPRIsManualDespiteAdultCPR(t *testing.T) {
	session := &fakeSession{}
	store := &fakeStore{}
	pipeline := newTestPipeline(&fakeChecker{}, &fakeStager{}, store)

	// A blank child field still selects the child as the subject; the form
	// must go to a human instead of being journalized under the adult's CPR.
	form := testForm()
	form.ChildCPR = strPtr("")
	form.AdultCPR = strPtr("0202902345")

	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeManualReview {
		t.Fatalf("expected manual review, got %v", outcome.Status)
	}
	if session.openSubjectCalls != 0 {
		t.Fatal("expected no session calls for a blank child identifier")
	}
	if len(store.statuses) != 0 {
		t.Fatalf("expected no status writes from the pipeline, got %v", store.statuses)
	}
}

func TestProcessNotInListFlagIsManualWithoutSessionCalls(t *testing.T) {
	session := &fakeSession{}
	pipeline := newTestPipeline(&fakeChecker{}, &fakeStager{}, &fakeStore{})

	form := testForm()
	form.NotInList = strPtr("1")

	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeManualReview {
		t.Fatalf("expected manual review, got %v", outcome.Status)
	}
	if session.openSubjectCalls != 0 {
		t.Fatal("expected no session calls for an unlisted subject")
	}
}

func TestProcessIdentityAmbiguityIsManualWithoutClosingSession(t *testing.T) {
	session := &fakeSession{openSubjectErr: apperr.IdentityAmbiguity("two candidate subjects")}
	pipeline := newTestPipeline(&fakeChecker{}, &fakeStager{}, &fakeStore{})

	form := testForm()
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeManualReview {
		t.Fatalf("expected manual review, got %v", outcome.Status)
	}
	if session.closeCalls != 0 {
		t.Fatal("manual review must not close the shared session")
	}
}

func TestProcessAppliesStepsInOrderAndWritesStatus(t *testing.T) {
	session := &fakeSession{clinicName: "Klinik Nord"}
	checker := &fakeChecker{}
	stager := &fakeStager{}
	store := &fakeStore{}
	pipeline := newTestPipeline(checker, stager, store)

	form := testForm()
	meta := testMetadata()
	outcome := pipeline.Process(context.Background(), session, &form, meta)

	if outcome.Status != OutcomeSuccess {
		t.Fatalf("expected success, got %v (err: %v)", outcome.Status, outcome.Err)
	}
	if session.createDocCalls != 1 || session.createEventCalls != 1 || session.createNoteCalls != 1 {
		t.Fatalf("expected one creation per step, got doc=%d event=%d note=%d",
			session.createDocCalls, session.createEventCalls, session.createNoteCalls)
	}
	if session.lastDocPath != "/staging/tilmelding.pdf" {
		t.Fatalf("unexpected staged document path: %q", session.lastDocPath)
	}

	wantSteps := []string{"Document", "Event", "JournalNote"}
	if len(store.progress) != len(wantSteps) {
		t.Fatalf("expected %d progress fragments, got %v", len(wantSteps), store.progress)
	}
	for i, step := range wantSteps {
		if store.progress[i].step != step || store.progress[i].procedure != meta.ResponseProcedure {
			t.Fatalf("unexpected progress fragment at %d: %+v", i, store.progress[i])
		}
	}

	if len(store.statuses) != 1 || store.statuses[0].status != repository.StatusSuccessful {
		t.Fatalf("expected one Successful status write, got %v", store.statuses)
	}
	if store.statuses[0].procedure != meta.StatusProcedure {
		t.Fatalf("status written through wrong procedure: %q", store.statuses[0].procedure)
	}
	if session.closeWindowCalls != 1 {
		t.Fatal("expected the subject window to be closed once")
	}
	if session.closeCalls != 0 {
		t.Fatal("success must leave the shared session open")
	}
	if len(stager.released) != 1 || stager.released[0] != "/staging/tilmelding.pdf" {
		t.Fatalf("expected the staged artifact to be released, got %v", stager.released)
	}
}

func TestProcessSecondRunIssuesNoCreationCalls(t *testing.T) {
	session := &fakeSession{clinicName: "Klinik Nord"}
	checker := &fakeChecker{docExists: true, eventExists: true, noteExists: true}
	store := &fakeStore{}
	pipeline := newTestPipeline(checker, &fakeStager{}, store)

	form := testForm()
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeSuccess {
		t.Fatalf("expected success, got %v (err: %v)", outcome.Status, outcome.Err)
	}
	if session.createDocCalls != 0 || session.createEventCalls != 0 || session.createNoteCalls != 0 {
		t.Fatal("expected zero creation calls when every record already exists")
	}
	if len(store.progress) != 0 {
		t.Fatalf("expected no progress fragments for skipped steps, got %v", store.progress)
	}
	if len(store.statuses) != 1 || store.statuses[0].status != repository.StatusSuccessful {
		t.Fatalf("expected the terminal status to still be written, got %v", store.statuses)
	}
}

func TestProcessFatalDuringEventClosesSessionOnce(t *testing.T) {
	session := &fakeSession{clinicName: "Klinik Nord", createEventErr: errors.New("automation timeout")}
	stager := &fakeStager{}
	pipeline := newTestPipeline(&fakeChecker{}, stager, &fakeStore{})

	form := testForm()
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %v", outcome.Status)
	}
	if outcome.Err == nil {
		t.Fatal("expected the underlying error to propagate")
	}
	if session.closeCalls != 1 {
		t.Fatalf("expected the session to be closed exactly once, got %d", session.closeCalls)
	}
	if session.createNoteCalls != 0 {
		t.Fatal("a later step must never run after an earlier step failed")
	}
	if len(stager.released) != 1 {
		t.Fatalf("expected the staged artifact to be released on the fatal path, got %v", stager.released)
	}
}

func TestProcessReleasesArtifactWhenDownloadFails(t *testing.T) {
	session := &fakeSession{}
	stager := &fakeStager{stageErr: apperr.Transport("download failed", errors.New("status 502"))}
	pipeline := newTestPipeline(&fakeChecker{}, stager, &fakeStore{})

	form := testForm()
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %v", outcome.Status)
	}
	if len(stager.released) != 1 {
		t.Fatalf("expected release after a failed download, got %v", stager.released)
	}
}

func TestProcessNoteUsesRenderedTextButChecksCleanedText(t *testing.T) {
	session := &fakeSession{clinicName: "Klinik Nord"}
	checker := &fakeChecker{docExists: true, eventExists: true}
	pipeline := newTestPipeline(checker, &fakeStager{}, &fakeStore{})

	form := testForm()
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeSuccess {
		t.Fatalf("expected success, got %v (err: %v)", outcome.Status, outcome.Err)
	}
	if session.lastNoteText != "Administrativt notat 'Tilmeldt hos Tandlægehuset, Hovedgaden 1'" {
		t.Fatalf("unexpected created note text: %q", session.lastNoteText)
	}
	if checker.lastNoteQuery != "Tilmeldt hos Tandlægehuset, Hovedgaden 1" {
		t.Fatalf("unexpected note existence query: %q", checker.lastNoteQuery)
	}
	if !session.lastNoteClose {
		t.Fatal("expected the consent template's close flag to be used")
	}
}

func TestProcessNoConsentSelectsOtherTemplate(t *testing.T) {
	session := &fakeSession{clinicName: "Klinik Nord"}
	checker := &fakeChecker{docExists: true, eventExists: true}
	pipeline := newTestPipeline(checker, &fakeStager{}, &fakeStore{})

	form := testForm()
	form.FormData = []byte(`{"data":{"samtykke":"0"}}`)
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeSuccess {
		t.Fatalf("expected success, got %v (err: %v)", outcome.Status, outcome.Err)
	}
	if session.lastNoteText != "Administrativt notat 'Tilmeldt uden samtykke hos Tandlægehuset'" {
		t.Fatalf("unexpected created note text: %q", session.lastNoteText)
	}
	if session.lastNoteClose {
		t.Fatal("expected the no-consent template's close flag to be used")
	}
}

func TestProcessMissingAttachmentURLIsFatal(t *testing.T) {
	session := &fakeSession{}
	stager := &fakeStager{}
	pipeline := newTestPipeline(&fakeChecker{}, stager, &fakeStore{})

	form := testForm()
	form.AttachmentURL = nil
	outcome := pipeline.Process(context.Background(), session, &form, testMetadata())

	if outcome.Status != OutcomeFatal {
		t.Fatalf("expected fatal outcome, got %v", outcome.Status)
	}
	if session.closeCalls != 1 {
		t.Fatal("expected the session to be closed on the fatal path")
	}
}
