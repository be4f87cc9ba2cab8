package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
)

type problem struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, problem{Error: code, Message: message})
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, approval.ErrInvalidInput), errors.Is(err, approval.ErrConfiguration):
		return http.StatusUnprocessableEntity, "invalid"
	case errors.Is(err, approval.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, approval.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, approval.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, approval.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes err as a problem body. Internal errors are logged and
// their details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		message = "internal error"
	}
	writeProblem(w, status, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return approval.Invalid("malformed request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, approval.Invalid("invalid id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, approval.Invalid("%s must be an integer", key)
	}
	return n, nil
}

func parseIDParam(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, approval.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}
