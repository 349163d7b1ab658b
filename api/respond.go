package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ingest "github.com/Ricou-IA/baikal-ingest"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error onto an HTTP status. Sentinel
// errors keep their message; anything unmapped becomes an opaque 500 so
// internal detail never leaks to the operator console.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrJobNotFound),
		errors.Is(err, ingest.ErrFileNotFound),
		errors.Is(err, ingest.ErrUploaderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrJobCompleted),
		errors.Is(err, ingest.ErrNotRetryable),
		errors.Is(err, ingest.ErrJobAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ingest.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a bounded JSON request body into v. A decode
// failure is reported as 400 and the handler must return.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
