package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jacentio/storefront/blob"
	"github.com/jacentio/storefront/queue"
	"github.com/jacentio/storefront/store"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps a backend error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, blob.ErrInvalidName),
		errors.Is(err, queue.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case store.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeBackendError renders err. Server errors are logged with their cause
// and answered with a generic message.
func writeBackendError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "error", err)
		writeError(w, status, op+" failed")
		return
	}
	writeError(w, status, err.Error())
}
