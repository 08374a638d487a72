package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prepstack/jeepapers/internal/exam"
)

// POST /question-sets
// Body: { "filename": "2024_Jan_27_Shift_1", "questions": [ ...90... ] }
func IngestQuestionSetHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p exam.IngestPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := svc.IngestQuestionSet(r.Context(), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": res})
	}
}

// GET /question-sets?year=2024&slot=Jan+27+Shift+1&limit=10&offset=0
// Listing never includes question bodies.
func ListQuestionSetsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year := parseIntDefault(r.URL.Query().Get("year"), 0)
		list, err := store.ListQuestionSets(r.Context(), exam.ListOpts{
			Year:   year,
			Slot:   strings.TrimSpace(r.URL.Query().Get("slot")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 10),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": list})
	}
}

// GET /questions?subjects=Physics,Chemistry&years=2023,2024&types=MCQ&limit=50&offset=0
func FilterQuestionsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.FilterOpts{
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		for _, s := range splitCSV(q.Get("subjects")) {
			opts.Subjects = append(opts.Subjects, exam.Subject(s))
		}
		for _, y := range splitCSV(q.Get("years")) {
			if v, err := strconv.Atoi(y); err == nil {
				opts.Years = append(opts.Years, v)
			}
		}
		for _, t := range splitCSV(q.Get("types")) {
			opts.Types = append(opts.Types, exam.QuestionType(t))
		}
		questions, err := svc.FilterQuestions(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"count": len(questions), "questions": questions},
		})
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
