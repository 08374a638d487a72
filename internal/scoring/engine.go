package scoring

import "fmt"

// Q is the minimal view of a question needed for marking: identity, type
// and the authoritative answer. Answer keys enter the engine through this
// type only; candidate-facing payloads never carry them.
type Q struct {
	ID     int
	Type   string
	Answer int
}

// Response is one answer-sheet slot. A nil Answer is an unattempted
// question and always marks 0.
type Response struct {
	QuestionID int
	Answer     *int
}

// QuestionResult is the outcome of marking a single question.
type QuestionResult struct {
	QuestionID int  `json:"question_id"`
	Marks      int  `json:"marks"`
	Correct    bool `json:"correct"`
}

// Result is the outcome of marking a full paper. Total is always the
// exact integer sum of the per-question marks.
type Result struct {
	Total       int              `json:"total"`
	MaxPossible int              `json:"max_possible"`
	PerQuestion []QuestionResult `json:"per_question"`
}

// Strategy marks a single non-blank answer against a question.
type Strategy interface {
	Marks(q Q, answer int) (marks int, correct bool)
}

// exactMatch awards the full marks on an exact numeric match and the
// penalty otherwise. Both MCQ (option index) and Integer (value) papers
// compare as plain numbers.
type exactMatch struct {
	correct int
	wrong   int
}

func (s exactMatch) Marks(q Q, answer int) (int, bool) {
	if answer == q.Answer {
		return s.correct, true
	}
	return s.wrong, false
}

type Option func(*config)

type config struct {
	CorrectMarks int
	WrongMarks   int
}

// WithScheme overrides the default +4/-1 marking scheme.
func WithScheme(correct, wrong int) Option {
	return func(c *config) { c.CorrectMarks = correct; c.WrongMarks = wrong }
}

// Engine routes each question to the strategy for its type. It holds no
// mutable state and performs no I/O: scoring the same inputs always
// yields the same result.
type Engine struct {
	strategies map[string]Strategy
	maxMarks   int
}

func NewEngine(opts ...Option) *Engine {
	cfg := &config{CorrectMarks: 4, WrongMarks: -1}
	for _, o := range opts {
		o(cfg)
	}
	exact := exactMatch{correct: cfg.CorrectMarks, wrong: cfg.WrongMarks}
	return &Engine{
		strategies: map[string]Strategy{
			"MCQ":     exact,
			"Integer": exact,
		},
		maxMarks: cfg.CorrectMarks,
	}
}

// Score marks a full response set against a paper in the paper's
// canonical question order. Responses for unknown question IDs are
// ignored; questions without a response mark 0.
func (e *Engine) Score(questions []Q, responses []Response) (Result, error) {
	byID := make(map[int]*int, len(responses))
	for _, r := range responses {
		byID[r.QuestionID] = r.Answer
	}
	res := Result{
		MaxPossible: e.maxMarks * len(questions),
		PerQuestion: make([]QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		qr := QuestionResult{QuestionID: q.ID}
		if answer, answered := byID[q.ID]; answered && answer != nil {
			s, ok := e.strategies[q.Type]
			if !ok {
				return Result{}, fmt.Errorf("no marking strategy for question type %q", q.Type)
			}
			qr.Marks, qr.Correct = s.Marks(q, *answer)
		}
		res.Total += qr.Marks
		res.PerQuestion = append(res.PerQuestion, qr)
	}
	return res, nil
}
