package scoring_test

import (
	"reflect"
	"testing"

	"github.com/prepstack/jeepapers/internal/scoring"
)

func intPtr(v int) *int { return &v }

func TestMarkingLaw(t *testing.T) {
	e := scoring.NewEngine()
	q := scoring.Q{ID: 7, Type: "MCQ", Answer: 2}

	tests := []struct {
		name    string
		answer  *int
		marks   int
		correct bool
	}{
		{name: "exact match", answer: intPtr(2), marks: 4, correct: true},
		{name: "mismatch", answer: intPtr(3), marks: -1, correct: false},
		{name: "zero answer mismatch", answer: intPtr(0), marks: -1, correct: false},
		{name: "blank", answer: nil, marks: 0, correct: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Score([]scoring.Q{q}, []scoring.Response{{QuestionID: 7, Answer: tc.answer}})
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			got := res.PerQuestion[0]
			if got.Marks != tc.marks || got.Correct != tc.correct {
				t.Fatalf("got marks=%d correct=%v, want marks=%d correct=%v",
					got.Marks, got.Correct, tc.marks, tc.correct)
			}
			if got.Marks != 4 && got.Marks != -1 && got.Marks != 0 {
				t.Fatalf("marks %d outside {4,-1,0}", got.Marks)
			}
			if (tc.answer == nil) != (got.Marks == 0) {
				t.Fatalf("marks must be 0 iff the answer is blank")
			}
		})
	}
}

func TestMissingResponseScoresZero(t *testing.T) {
	e := scoring.NewEngine()
	qs := []scoring.Q{{ID: 1, Type: "Integer", Answer: 42}}
	res, err := e.Score(qs, nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Total != 0 || res.PerQuestion[0].Marks != 0 || res.PerQuestion[0].Correct {
		t.Fatalf("absent response must mark 0, got %+v", res.PerQuestion[0])
	}
}

func TestIntegerTypeExactMatch(t *testing.T) {
	e := scoring.NewEngine()
	qs := []scoring.Q{{ID: 1, Type: "Integer", Answer: 125}}
	res, err := e.Score(qs, []scoring.Response{{QuestionID: 1, Answer: intPtr(125)}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Total != 4 || !res.PerQuestion[0].Correct {
		t.Fatalf("expected +4 correct, got %+v", res.PerQuestion[0])
	}
}

// 90 questions, 45 correct, 30 wrong, 15 blank: 45*4 - 30 = 150.
func TestFullPaperScenario(t *testing.T) {
	e := scoring.NewEngine()
	var qs []scoring.Q
	for i := 0; i < 90; i++ {
		answer := 2
		if i >= 30 && i < 60 {
			answer = 1
		} else if i >= 60 {
			answer = 0
		}
		qs = append(qs, scoring.Q{ID: i + 1, Type: "MCQ", Answer: answer})
	}
	var responses []scoring.Response
	for i, q := range qs {
		r := scoring.Response{QuestionID: q.ID}
		switch {
		case i < 45: // correct
			r.Answer = intPtr(q.Answer)
		case i < 75: // wrong
			r.Answer = intPtr((q.Answer + 1) % 4)
		default: // blank
		}
		responses = append(responses, r)
	}

	res, err := e.Score(qs, responses)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Total != 150 {
		t.Fatalf("total = %d, want 150", res.Total)
	}
	if res.MaxPossible != 360 {
		t.Fatalf("max possible = %d, want 360", res.MaxPossible)
	}

	sum := 0
	for _, pq := range res.PerQuestion {
		sum += pq.Marks
	}
	if sum != res.Total {
		t.Fatalf("total %d != sum of per-question marks %d", res.Total, sum)
	}
	if len(res.PerQuestion) != 90 {
		t.Fatalf("per-question results = %d, want 90", len(res.PerQuestion))
	}
}

func TestDeterminism(t *testing.T) {
	e := scoring.NewEngine()
	qs := []scoring.Q{
		{ID: 1, Type: "MCQ", Answer: 0},
		{ID: 2, Type: "Integer", Answer: 9},
		{ID: 3, Type: "MCQ", Answer: 3},
	}
	rs := []scoring.Response{
		{QuestionID: 1, Answer: intPtr(0)},
		{QuestionID: 2, Answer: intPtr(8)},
		{QuestionID: 3, Answer: nil},
	}
	first, err := e.Score(qs, rs)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	second, err := e.Score(qs, rs)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring is not deterministic: %+v vs %+v", first, second)
	}
}

func TestCustomScheme(t *testing.T) {
	e := scoring.NewEngine(scoring.WithScheme(3, 0))
	qs := []scoring.Q{
		{ID: 1, Type: "MCQ", Answer: 1},
		{ID: 2, Type: "MCQ", Answer: 1},
	}
	rs := []scoring.Response{
		{QuestionID: 1, Answer: intPtr(1)},
		{QuestionID: 2, Answer: intPtr(2)},
	}
	res, err := e.Score(qs, rs)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Total != 3 || res.MaxPossible != 6 {
		t.Fatalf("total=%d max=%d, want total=3 max=6", res.Total, res.MaxPossible)
	}
}

func TestUnknownTypeFails(t *testing.T) {
	e := scoring.NewEngine()
	_, err := e.Score(
		[]scoring.Q{{ID: 1, Type: "essay", Answer: 0}},
		[]scoring.Response{{QuestionID: 1, Answer: intPtr(0)}},
	)
	if err == nil {
		t.Fatal("expected error for unknown question type")
	}
}
