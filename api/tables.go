package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
)

// tableNamePattern accepts alphanumeric names starting with a letter.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,62}$`)

// EntityRequest is the body of POST and PUT /table/{table}. EntityData is
// either a JSON string holding the entity or the entity object itself.
type EntityRequest struct {
	EntityData json.RawMessage `json:"entityData"`
}

func (s *Server) tableName(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := mux.Vars(r)["table"]
	if !tableNamePattern.MatchString(table) {
		writeError(w, http.StatusBadRequest, "invalid table name")
		return "", false
	}
	return table, true
}

// entityPayload extracts the entity JSON from the request body.
func (s *Server) entityPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}

	var req EntityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	data := bytes.TrimSpace(req.EntityData)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			writeError(w, http.StatusBadRequest, "invalid entityData")
			return nil, false
		}
		data = bytes.TrimSpace([]byte(text))
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		writeError(w, http.StatusBadRequest, "Entity data is required")
		return nil, false
	}
	return data, true
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableName(w, r)
	if !ok {
		return
	}
	records, err := s.store.ListAll(r.Context(), table)
	if err != nil {
		writeBackendError(w, s.logger, "list entities", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableName(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	rec, err := s.store.Get(r.Context(), table, vars["partitionKey"], vars["rowKey"])
	if err != nil {
		writeBackendError(w, s.logger, "get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableName(w, r)
	if !ok {
		return
	}
	payload, ok := s.entityPayload(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Add(r.Context(), table, payload)
	if err != nil {
		writeBackendError(w, s.logger, "add entity", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableName(w, r)
	if !ok {
		return
	}
	payload, ok := s.entityPayload(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Update(r.Context(), table, payload)
	if err != nil {
		writeBackendError(w, s.logger, "update entity", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableName(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := s.store.Delete(r.Context(), table, vars["partitionKey"], vars["rowKey"]); err != nil {
		writeBackendError(w, s.logger, "delete entity", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
