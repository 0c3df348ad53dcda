package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"doccenter/internal/library"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Count int    `json:"count,omitempty"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps store errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, library.ErrNotFound):
		status, body.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, library.ErrHasActiveDependents):
		status, body.Code = http.StatusConflict, "has_dependents"
		body.Count, _ = library.DependentCount(err)
	case errors.Is(err, library.ErrAlreadyReturned):
		status, body.Code = http.StatusConflict, "already_returned"
	case errors.Is(err, library.ErrInvalidTransition):
		status, body.Code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, library.ErrDuplicateKey):
		status, body.Code = http.StatusConflict, "duplicate_key"
	case errors.Is(err, library.ErrInvalidInput):
		status, body.Code = http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, errBadRequest):
		status, body.Code = http.StatusBadRequest, "bad_request"
	default:
		body.Code = "internal"
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return n, nil
}

// queryDuration accepts Go durations ("72h") or a plain number of days.
func queryDuration(r *http.Request, key string, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	if days, err := strconv.Atoi(raw); err == nil {
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a duration or a number of days", errBadRequest, key)
	}
	return d, nil
}
