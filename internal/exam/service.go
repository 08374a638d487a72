package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prepstack/jeepapers/internal/scoring"
)

// EventRecorder receives audit events after successful commits. Appends
// are best-effort: a failing recorder never fails the operation.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, data any) error
}

// Service is the attempt lifecycle manager. It owns the open -> scored
// state machine, ownership checks and ingestion validation; persistence
// and per-attempt write serialization live in the Store.
type Service struct {
	store  Store
	engine *scoring.Engine
	events EventRecorder
	now    func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithEngine(e *scoring.Engine) ServiceOption {
	return func(s *Service) { s.engine = e }
}

func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) { s.events = r }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		engine: scoring.NewEngine(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Event types recorded on the audit log.
const (
	EventQuestionSetIngested = "QuestionSetIngested"
	EventAttemptScored       = "AttemptScored"
)

type IngestPayload struct {
	Name      string     `json:"filename"` // canonical: YYYY_MMM_DD_Shift_N
	Questions []Question `json:"questions"`
}

type IngestResult struct {
	ID            string `json:"id"`
	Year          int    `json:"year"`
	Slot          string `json:"slot"`
	QuestionCount int    `json:"question_count"`
}

// IngestQuestionSet validates and commits a new paper. The commit is
// all-or-nothing: on any failure the store is left as if the call never
// happened, and a taken (year, slot) reports ErrConflict.
func (s *Service) IngestQuestionSet(ctx context.Context, p IngestPayload) (IngestResult, error) {
	year, slot, err := ParseSetName(p.Name)
	if err != nil {
		return IngestResult{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if problems := ValidateQuestions(p.Questions); len(problems) > 0 {
		return IngestResult{}, &ValidationError{Problems: problems}
	}
	qs := QuestionSet{
		ID:        s.newID(),
		Year:      year,
		Slot:      slot,
		Questions: p.Questions,
		CreatedAt: s.now().Unix(),
	}
	stored, err := s.store.PutQuestionSet(ctx, qs)
	if err != nil {
		return IngestResult{}, err
	}
	res := IngestResult{ID: stored.ID, Year: stored.Year, Slot: stored.Slot, QuestionCount: len(stored.Questions)}
	if s.events != nil {
		_ = s.events.Record(ctx, EventQuestionSetIngested, stored.ID, res)
	}
	return res, nil
}

type StartResult struct {
	AttemptID         string         `json:"attempt_id"`
	QuestionSetID     string         `json:"question_set_id"`
	Questions         []QuestionView `json:"questions"`
	SubjectBoundaries []SubjectRange `json:"subject_boundaries"`
	Responses         []Response     `json:"responses"`
	Resumed           bool           `json:"resumed"`
}

// StartAttempt opens an attempt against the paper at key and returns the
// full ordered question list with answer keys stripped. A candidate holds
// at most one open attempt per paper: starting again resumes it, saved
// responses included. Papers without exactly 90 stored questions are
// treated as absent.
func (s *Service) StartAttempt(ctx context.Context, candidateID string, key SetKey) (StartResult, error) {
	qs, err := s.store.GetQuestionSet(ctx, key)
	if err != nil {
		return StartResult{}, err
	}
	if len(qs.Questions) != SetSize {
		return StartResult{}, fmt.Errorf("question set %d %q incomplete (%d questions): %w",
			qs.Year, qs.Slot, len(qs.Questions), ErrNotFound)
	}

	views := make([]QuestionView, len(qs.Questions))
	for i, q := range qs.Questions {
		views[i] = q.View()
	}

	if open, err := s.store.FindOpenAttempt(ctx, candidateID, qs.ID); err == nil {
		return StartResult{
			AttemptID:         open.ID,
			QuestionSetID:     qs.ID,
			Questions:         views,
			SubjectBoundaries: open.SubjectBoundaries,
			Responses:         open.Responses,
			Resumed:           true,
		}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return StartResult{}, err
	}

	a := Attempt{
		ID:                s.newID(),
		QuestionSetID:     qs.ID,
		UserID:            candidateID,
		Status:            StatusOpen,
		Responses:         []Response{},
		SubjectBoundaries: ComputeSubjectBoundaries(qs.Questions),
		StartedAt:         s.now().Unix(),
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return StartResult{}, err
	}
	return StartResult{
		AttemptID:         a.ID,
		QuestionSetID:     qs.ID,
		Questions:         views,
		SubjectBoundaries: a.SubjectBoundaries,
		Responses:         a.Responses,
	}, nil
}

// AuthorizeAccess admits only the attempt's owner. It precedes every
// save and submit mutation.
func (s *Service) AuthorizeAccess(a Attempt, candidateID string) error {
	if a.UserID != candidateID {
		return fmt.Errorf("attempt %s does not belong to %s: %w", a.ID, candidateID, ErrForbidden)
	}
	return nil
}

// SaveProgress replaces the attempt's responses wholesale. Every save
// carries the full 90-slot sheet, one entry per question in paper order;
// there is no incremental patching.
func (s *Service) SaveProgress(ctx context.Context, attemptID, candidateID string, responses []Response) error {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if err := s.AuthorizeAccess(a, candidateID); err != nil {
		return err
	}
	if a.Status != StatusOpen {
		return fmt.Errorf("attempt %s already scored: %w", a.ID, ErrInvalidState)
	}
	qs, err := s.store.GetQuestionSetByID(ctx, a.QuestionSetID)
	if err != nil {
		return err
	}
	if problems := validateResponses(responses, qs.Questions); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	a.Responses = responses
	_, err = s.store.UpdateAttempt(ctx, a)
	return err
}

func validateResponses(responses []Response, questions []Question) []string {
	var problems []string
	if len(responses) != len(questions) {
		return []string{fmt.Sprintf("expected %d responses, got %d", len(questions), len(responses))}
	}
	for i, r := range responses {
		if r.QuestionID != questions[i].ID {
			problems = append(problems, fmt.Sprintf(
				"response %d: question_id %d does not match paper order (want %d)", i, r.QuestionID, questions[i].ID))
		}
	}
	return problems
}

type Report struct {
	AttemptID         string                   `json:"attempt_id"`
	Score             int                      `json:"score"`
	TotalQuestions    int                      `json:"total_questions"`
	MaxPossible       int                      `json:"max_possible"`
	PerQuestion       []scoring.QuestionResult `json:"per_question"`
	SubjectBoundaries []SubjectRange           `json:"subject_boundaries"`
	CompletedAt       int64                    `json:"completed_at"`
}

// SubmitAttempt scores an open attempt exactly once and freezes it. The
// transition is a one-shot lock: any later submit, including one that
// lost a concurrent race, observes ErrInvalidState and the stored score
// is never recomputed.
func (s *Service) SubmitAttempt(ctx context.Context, attemptID, candidateID string) (Report, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Report{}, err
	}
	if err := s.AuthorizeAccess(a, candidateID); err != nil {
		return Report{}, err
	}
	if a.Status != StatusOpen {
		return Report{}, fmt.Errorf("attempt %s already scored: %w", a.ID, ErrInvalidState)
	}
	qs, err := s.store.GetQuestionSetByID(ctx, a.QuestionSetID)
	if err != nil {
		return Report{}, err
	}
	res, err := s.engine.Score(toScoringQs(qs.Questions), toScoringResponses(a.Responses))
	if err != nil {
		return Report{}, err
	}

	now := s.now().Unix()
	a.Status = StatusScored
	a.Score = &res.Total
	a.CompletedAt = &now
	if _, err := s.store.UpdateAttempt(ctx, a); err != nil {
		return Report{}, err
	}

	report := Report{
		AttemptID:         a.ID,
		Score:             res.Total,
		TotalQuestions:    len(qs.Questions),
		MaxPossible:       res.MaxPossible,
		PerQuestion:       res.PerQuestion,
		SubjectBoundaries: a.SubjectBoundaries,
		CompletedAt:       now,
	}
	if s.events != nil {
		_ = s.events.Record(ctx, EventAttemptScored, a.ID, report)
	}
	return report, nil
}

// AttemptReport rebuilds the full score report for a scored attempt.
// Scoring is deterministic, so the recomputation reproduces the stored
// result exactly; the frozen responses are the input.
func (s *Service) AttemptReport(ctx context.Context, attemptID, candidateID string) (Report, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Report{}, err
	}
	if err := s.AuthorizeAccess(a, candidateID); err != nil {
		return Report{}, err
	}
	if a.Status != StatusScored {
		return Report{}, fmt.Errorf("attempt %s not yet scored: %w", a.ID, ErrInvalidState)
	}
	qs, err := s.store.GetQuestionSetByID(ctx, a.QuestionSetID)
	if err != nil {
		return Report{}, err
	}
	res, err := s.engine.Score(toScoringQs(qs.Questions), toScoringResponses(a.Responses))
	if err != nil {
		return Report{}, err
	}
	var completed int64
	if a.CompletedAt != nil {
		completed = *a.CompletedAt
	}
	return Report{
		AttemptID:         a.ID,
		Score:             res.Total,
		TotalQuestions:    len(qs.Questions),
		MaxPossible:       res.MaxPossible,
		PerQuestion:       res.PerQuestion,
		SubjectBoundaries: a.SubjectBoundaries,
		CompletedAt:       completed,
	}, nil
}

// GetAttempt is a read for the API layer; ownership is enforced there,
// where the viewer's role is known.
func (s *Service) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

func toScoringQs(qs []Question) []scoring.Q {
	out := make([]scoring.Q, len(qs))
	for i, q := range qs {
		out[i] = scoring.Q{ID: q.ID, Type: string(q.Type), Answer: q.Answer}
	}
	return out
}

func toScoringResponses(rs []Response) []scoring.Response {
	out := make([]scoring.Response, len(rs))
	for i, r := range rs {
		out[i] = scoring.Response{QuestionID: r.QuestionID, Answer: r.Answer}
	}
	return out
}
