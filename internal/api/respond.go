package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"practicerooms/internal/database"
	"practicerooms/internal/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps a service error onto a status code. Rule violations
// become 422 with their reason; faults are logged and hidden behind a 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := models.AsRejection(err); ok {
		status := http.StatusUnprocessableEntity
		switch rej.Reason {
		case models.ReasonNotFound:
			status = http.StatusNotFound
		case models.ReasonInvalidInput:
			status = http.StatusBadRequest
		case models.ReasonDuplicateName:
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Error: rej.Message, Reason: string(rej.Reason)})
		return
	}
	if errors.Is(err, database.ErrConcurrentModification) {
		writeError(w, http.StatusConflict, "booking was modified concurrently, reload and retry")
		return
	}

	s.logger.Error().Err(err).
		Str("request_id", RequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

// queryTime parses an RFC 3339 query parameter.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected RFC 3339", name)
	}
	return t, nil
}

func queryInterval(r *http.Request) (time.Time, time.Time, error) {
	start, err := queryTime(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := queryTime(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// OKResponse acknowledges a mutation that returns no entity.
type OKResponse struct {
	OK bool `json:"ok"`
}
