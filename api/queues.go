package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jacentio/storefront/queue"
)

// MessageRequest is the body of POST /queue/{queue}.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse is the body of GET /queue/{queue}.
type MessageResponse struct {
	Message string `json:"message"`
}

// EnqueueResponse is the body of POST /orders/enqueue.
type EnqueueResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	if _, err := s.queue.Send(r.Context(), mux.Vars(r)["queue"], req.Message); err != nil {
		writeBackendError(w, s.logger, "send message", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReceiveMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.queue.ReceiveOne(r.Context(), mux.Vars(r)["queue"])
	if errors.Is(err, queue.ErrEmpty) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeBackendError(w, s.logger, "receive message", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg.Body})
}

// handleEnqueueOrder forwards the raw body to the orders queue unchanged.
// The worker validates it.
func (s *Server) handleEnqueueOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(w, http.StatusBadRequest, "Request body is required")
		return
	}

	if _, err := s.queue.Send(r.Context(), s.config.OrdersQueue, string(body)); err != nil {
		writeBackendError(w, s.logger, "enqueue order", err)
		return
	}
	writeJSON(w, http.StatusOK, EnqueueResponse{Result: "enqueued"})
}
