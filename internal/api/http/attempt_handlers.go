package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/prepstack/jeepapers/internal/auth/middleware"
	"github.com/prepstack/jeepapers/internal/exam"
	"github.com/prepstack/jeepapers/internal/rbac"
)

// POST /attempts
// Body: { "year": 2024, "slot": "Jan 27 Shift 1" }
// Returns the attempt plus the full ordered paper, answers stripped.
// Starting a paper the candidate already has open resumes it.
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidate := authmw.SubjectFromContext(r.Context())
		var key exam.SetKey
		if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if key.Year == 0 || strings.TrimSpace(key.Slot) == "" {
			http.Error(w, "year and slot required", http.StatusBadRequest)
			return
		}
		res, err := svc.StartAttempt(r.Context(), candidate, key)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if res.Resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, res)
	}
}

// PUT /attempts/{attemptID}/responses
// Body: { "responses": [ {"question_id":1,"answer":2}, ...90... ] }
// The sheet is replaced wholesale on every save.
func SaveProgressHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidate := authmw.SubjectFromContext(r.Context())
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Responses []exam.Response `json:"responses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := svc.SaveProgress(r.Context(), id, candidate, req.Responses); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

// POST /attempts/{attemptID}/submit
// Scores the attempt exactly once and returns the full report.
func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidate := authmw.SubjectFromContext(r.Context())
		id := chi.URLParam(r, "attemptID")
		report, err := svc.SubmitAttempt(r.Context(), id, candidate)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.GetAttempt(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := authorizeView(r, svc, a); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}/report
// Re-derives the score report for a scored attempt; scoring determinism
// makes the recomputation exact.
func AttemptReportHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.GetAttempt(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := authorizeView(r, svc, a); err != nil {
			writeError(w, err)
			return
		}
		report, err := svc.AttemptReport(r.Context(), id, a.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// GET /attempts?question_set_id=...&user_id=...&status=...&limit=50&offset=0
// Viewers without attempt:view-all only ever see their own attempts.
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !rbac.HasPerm(role, "attempt:view-all") {
			userID = sub
		}
		list, err := store.ListAttempts(r.Context(), exam.AttemptListOpts{
			QuestionSetID: strings.TrimSpace(r.URL.Query().Get("question_set_id")),
			UserID:        userID,
			Status:        strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:         parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:        parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// authorizeView admits the attempt's owner and anyone holding
// attempt:view-all.
func authorizeView(r *http.Request, svc *exam.Service, a exam.Attempt) error {
	role := rbac.RoleFromContext(r.Context())
	if rbac.HasPerm(role, "attempt:view-all") {
		return nil
	}
	return svc.AuthorizeAccess(a, authmw.SubjectFromContext(r.Context()))
}
