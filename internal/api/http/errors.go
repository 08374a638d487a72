package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prepstack/jeepapers/internal/exam"
)

type errorBody struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// writeError translates the core failure taxonomy to HTTP. Anything the
// core did not classify is a plain 500.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Status: "error", Message: err.Error()}
	status := http.StatusInternalServerError
	var ve *exam.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		body.Message = "validation failed"
		body.Errors = ve.Problems
	case errors.Is(err, exam.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, exam.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, exam.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exam.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, exam.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
