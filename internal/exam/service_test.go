package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestService(opts ...ServiceOption) (*Service, Store) {
	store := NewMemoryStore()
	return NewService(store, opts...), store
}

func paperPayload() IngestPayload {
	return IngestPayload{Name: "2024_Jan_27_Shift_1", Questions: validPaper()}
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeRecorder) Record(_ context.Context, typ, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, typ+":"+key)
	return nil
}

func TestIngestQuestionSet(t *testing.T) {
	svc, _ := newTestService()
	res, err := svc.IngestQuestionSet(context.Background(), paperPayload())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Year != 2024 || res.Slot != "Jan 27 Shift 1" || res.QuestionCount != 90 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ID == "" {
		t.Fatal("ingest result missing id")
	}
}

func TestIngestDuplicateConflicts(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	_, err := svc.IngestQuestionSet(context.Background(), paperPayload())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	sums, err := store.ListQuestionSets(context.Background(), ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("store holds %d sets after duplicate ingest, want 1", len(sums))
	}
}

func TestIngestRejectsWrongCount(t *testing.T) {
	svc, store := newTestService()
	p := paperPayload()
	extra := p.Questions[0]
	extra.ID = 91
	p.Questions = append(p.Questions, extra)

	_, err := svc.IngestQuestionSet(context.Background(), p)
	ve, ok := AsValidation(err)
	if !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	found := false
	for _, p := range ve.Problems {
		if p == "expected 90 questions, got 91" {
			found = true
		}
	}
	if !found {
		t.Fatalf("problems %v do not name the count mismatch", ve.Problems)
	}
	sums, _ := store.ListQuestionSets(context.Background(), ListOpts{})
	if len(sums) != 0 {
		t.Fatal("failed ingest must leave the store unchanged")
	}
}

func TestIngestRejectsBadName(t *testing.T) {
	svc, _ := newTestService()
	p := paperPayload()
	p.Name = "paper-2024-jan"
	if _, err := svc.IngestQuestionSet(context.Background(), p); err == nil {
		t.Fatal("expected validation error for bad paper name")
	}
}

func TestConcurrentIngestOneWinner(t *testing.T) {
	svc, store := newTestService()
	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IngestQuestionSet(context.Background(), paperPayload())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	okCount, conflictCount := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || conflictCount != n-1 {
		t.Fatalf("got %d successes and %d conflicts, want 1 and %d", okCount, conflictCount, n-1)
	}
	sums, _ := store.ListQuestionSets(context.Background(), ListOpts{})
	if len(sums) != 1 {
		t.Fatalf("store holds %d sets, want 1", len(sums))
	}
}

func TestStartAttempt(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	res, err := svc.StartAttempt(context.Background(), "c1", SetKey{Year: 2024, Slot: "Jan 27 Shift 1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.AttemptID == "" || res.Resumed {
		t.Fatalf("unexpected start result: %+v", res)
	}
	if len(res.Questions) != SetSize {
		t.Fatalf("got %d questions, want %d", len(res.Questions), SetSize)
	}
	if len(res.Responses) != 0 {
		t.Fatalf("new attempt must have empty responses, got %d", len(res.Responses))
	}
	want := []SubjectRange{
		{Subject: SubjectMathematics, Start: 0, End: 30},
		{Subject: SubjectPhysics, Start: 30, End: 60},
		{Subject: SubjectChemistry, Start: 60, End: 90},
	}
	for i, r := range res.SubjectBoundaries {
		if r != want[i] {
			t.Fatalf("boundary %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestStartUnknownPaperNotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.StartAttempt(context.Background(), "c1", SetKey{Year: 2031, Slot: "Jan 01 Shift 1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartIncompletePaperNotFound(t *testing.T) {
	svc, store := newTestService()
	// Partially-ingested legacy data: 89 questions slipped past an older
	// importer. Start must treat the paper as absent.
	qs := QuestionSet{ID: "legacy", Year: 2021, Slot: "Feb 25 Shift 2", Questions: validPaper()[:89]}
	if _, err := store.PutQuestionSet(context.Background(), qs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := svc.StartAttempt(context.Background(), "c1", SetKey{Year: 2021, Slot: "Feb 25 Shift 2"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartResumesOpenAttempt(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	key := SetKey{Year: 2024, Slot: "Jan 27 Shift 1"}
	first, err := svc.StartAttempt(context.Background(), "c1", key)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SaveProgress(context.Background(), first.AttemptID, "c1", fullSheet(42)); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := svc.StartAttempt(context.Background(), "c1", key)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !second.Resumed || second.AttemptID != first.AttemptID {
		t.Fatalf("expected resume of %s, got %+v", first.AttemptID, second)
	}
	if len(second.Responses) != SetSize {
		t.Fatalf("resume lost saved responses: got %d", len(second.Responses))
	}

	// A different candidate gets their own attempt.
	other, err := svc.StartAttempt(context.Background(), "c2", key)
	if err != nil {
		t.Fatalf("start other: %v", err)
	}
	if other.AttemptID == first.AttemptID || other.Resumed {
		t.Fatalf("c2 must not share c1's attempt: %+v", other)
	}
}

// fullSheet builds a 90-entry answer sheet for validPaper where every
// question is answered with the given option.
func fullSheet(answer int) []Response {
	sheet := make([]Response, SetSize)
	for i := range sheet {
		a := answer % 4
		sheet[i] = Response{QuestionID: i + 1, Answer: &a}
	}
	return sheet
}

// mixedSheet answers the first `correct` questions correctly, the next
// `wrong` incorrectly, and leaves the rest blank, against validPaper.
func mixedSheet(correct, wrong int) []Response {
	qs := validPaper()
	sheet := make([]Response, SetSize)
	for i, q := range qs {
		sheet[i] = Response{QuestionID: q.ID}
		switch {
		case i < correct:
			a := q.Answer
			sheet[i].Answer = &a
		case i < correct+wrong:
			a := (q.Answer + 1) % 4
			sheet[i].Answer = &a
		}
	}
	return sheet
}

func startOne(t *testing.T, svc *Service, candidate string) string {
	t.Helper()
	res, err := svc.StartAttempt(context.Background(), candidate, SetKey{Year: 2024, Slot: "Jan 27 Shift 1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return res.AttemptID
}

func TestSaveProgressReplacesWholesale(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")

	if err := svc.SaveProgress(context.Background(), id, "c1", fullSheet(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.SaveProgress(context.Background(), id, "c1", fullSheet(3)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	a, err := store.GetAttempt(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i, r := range a.Responses {
		if r.Answer == nil || *r.Answer != 3 {
			t.Fatalf("response %d = %v, want wholesale replacement with 3", i, r.Answer)
		}
	}
}

func TestSaveProgressValidatesSheet(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")

	if err := svc.SaveProgress(context.Background(), id, "c1", fullSheet(0)[:45]); err == nil {
		t.Fatal("expected validation error for a 45-entry sheet")
	} else if _, ok := AsValidation(err); !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	sheet := fullSheet(0)
	sheet[10].QuestionID = 999
	if err := svc.SaveProgress(context.Background(), id, "c1", sheet); err == nil {
		t.Fatal("expected validation error for out-of-order question ids")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")

	if err := svc.SaveProgress(context.Background(), id, "intruder", fullSheet(0)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("save err = %v, want ErrForbidden", err)
	}
	if _, err := svc.SubmitAttempt(context.Background(), id, "intruder"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("submit err = %v, want ErrForbidden", err)
	}
}

func TestSubmitScoresOnce(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")
	if err := svc.SaveProgress(context.Background(), id, "c1", mixedSheet(45, 30)); err != nil {
		t.Fatalf("save: %v", err)
	}

	report, err := svc.SubmitAttempt(context.Background(), id, "c1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.Score != 150 {
		t.Fatalf("score = %d, want 150", report.Score)
	}
	if report.TotalQuestions != 90 || report.MaxPossible != 360 {
		t.Fatalf("unexpected report envelope: %+v", report)
	}
	sum := 0
	for _, pq := range report.PerQuestion {
		sum += pq.Marks
	}
	if sum != report.Score {
		t.Fatalf("score %d != sum of marks %d", report.Score, sum)
	}

	// One-shot lock: the second submit must not re-score.
	if _, err := svc.SubmitAttempt(context.Background(), id, "c1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second submit err = %v, want ErrInvalidState", err)
	}
	a, _ := store.GetAttempt(context.Background(), id)
	if a.Status != StatusScored || a.Score == nil || *a.Score != 150 {
		t.Fatalf("stored attempt corrupted by re-submit: %+v", a)
	}

	// Frozen: saves after scoring are rejected.
	if err := svc.SaveProgress(context.Background(), id, "c1", fullSheet(0)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("save after submit err = %v, want ErrInvalidState", err)
	}
}

func TestConcurrentSubmitsSingleWinner(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")
	if err := svc.SaveProgress(context.Background(), id, "c1", mixedSheet(45, 30)); err != nil {
		t.Fatalf("save: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitAttempt(context.Background(), id, "c1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	okCount, invalidCount := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrInvalidState):
			invalidCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || invalidCount != 1 {
		t.Fatalf("got %d successes and %d invalid-state failures, want exactly 1 and 1", okCount, invalidCount)
	}
}

func TestSaveCannotResurrectScoredAttempt(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")

	// A save that read the attempt while it was still open loses to the
	// submit: the stale version cannot overwrite the scored row.
	stale, err := store.GetAttempt(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.SubmitAttempt(context.Background(), id, "c1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	stale.Responses = fullSheet(2)
	if _, err := store.UpdateAttempt(context.Background(), stale); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("stale write err = %v, want ErrInvalidState", err)
	}
	a, _ := store.GetAttempt(context.Background(), id)
	if a.Status != StatusScored {
		t.Fatalf("attempt resurrected to %q", a.Status)
	}
}

func TestStaleVersionConflictsWhileOpen(t *testing.T) {
	_, store := newTestService()
	a := Attempt{ID: "a1", QuestionSetID: "qs", UserID: "c1", Status: StatusOpen, Responses: []Response{}}
	if err := store.CreateAttempt(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateAttempt(context.Background(), a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	// Same version again: the attempt is still open, so this is a plain
	// write conflict, not a lifecycle violation.
	if _, err := store.UpdateAttempt(context.Background(), a); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAttemptReportRecomputesExactly(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")
	if err := svc.SaveProgress(context.Background(), id, "c1", mixedSheet(10, 5)); err != nil {
		t.Fatalf("save: %v", err)
	}
	submitted, err := svc.SubmitAttempt(context.Background(), id, "c1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	report, err := svc.AttemptReport(context.Background(), id, "c1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Score != submitted.Score || len(report.PerQuestion) != len(submitted.PerQuestion) {
		t.Fatalf("recomputed report diverges: %+v vs %+v", report, submitted)
	}
}

func TestReportBeforeSubmitInvalid(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")
	if _, err := svc.AttemptReport(context.Background(), id, "c1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestEventsRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	svc, _ := newTestService(WithEventRecorder(rec))
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	id := startOne(t, svc, "c1")
	if _, err := svc.SubmitAttempt(context.Background(), id, "c1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 2 {
		t.Fatalf("recorded %d events, want 2: %v", len(rec.events), rec.events)
	}
	if rec.events[0][:len(EventQuestionSetIngested)] != EventQuestionSetIngested {
		t.Fatalf("first event = %q", rec.events[0])
	}
	if rec.events[1] != EventAttemptScored+":"+id {
		t.Fatalf("second event = %q", rec.events[1])
	}
}

func TestFilterQuestions(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.IngestQuestionSet(context.Background(), paperPayload()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	got, err := svc.FilterQuestions(context.Background(), FilterOpts{
		Subjects: []Subject{SubjectPhysics},
		Years:    []int{2024},
		Limit:    100,
	})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(got) != 30 {
		t.Fatalf("got %d questions, want 30", len(got))
	}
	for _, q := range got {
		if q.Subject != SubjectPhysics {
			t.Fatalf("filter leaked subject %q", q.Subject)
		}
	}
}
