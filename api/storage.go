package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// InitializeResponse is the body of POST /storage/initialize.
type InitializeResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /storage/health. Each map reports
// whether the named resource is reachable.
type HealthResponse struct {
	Tables     map[string]bool `json:"tables"`
	Blobs      map[string]bool `json:"blobs"`
	Queues     map[string]bool `json:"queues"`
	FileShares map[string]bool `json:"fileShares"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (s *Server) handleInitializeStorage(w http.ResponseWriter, r *http.Request) {
	if err := s.initialize(r.Context()); err != nil {
		writeBackendError(w, s.logger, "initialize storage", err)
		return
	}
	s.logger.Info("storage initialized")
	writeJSON(w, http.StatusOK, InitializeResponse{Message: "Storage initialized successfully"})
}

// initialize creates every configured resource. It is safe to repeat.
func (s *Server) initialize(ctx context.Context) error {
	res := s.config.Resources
	for _, table := range res.Tables {
		if err := s.store.EnsureTable(ctx, table); err != nil {
			return err
		}
	}
	for _, container := range res.Containers {
		if err := s.blobs.EnsureContainer(ctx, container); err != nil {
			return err
		}
	}
	for _, name := range res.Queues {
		if _, err := s.queue.Ensure(ctx, name); err != nil {
			return fmt.Errorf("create queue %s: %w", name, err)
		}
	}
	if res.Share != "" {
		if err := s.blobs.EnsureDirectory(ctx, res.Share, res.ShareDirectory); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleStorageHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := s.config.Resources

	health := HealthResponse{
		Tables:     s.probe(ctx, "table", res.Tables, s.store.Exists),
		Blobs:      s.probe(ctx, "container", res.Containers, s.blobs.Exists),
		Queues:     s.probe(ctx, "queue", res.Queues, s.queue.Exists),
		FileShares: map[string]bool{},
		Timestamp:  time.Now().UTC(),
	}
	if res.Share != "" {
		health.FileShares = s.probe(ctx, "share", []string{res.Share}, s.blobs.Exists)
	}
	writeJSON(w, http.StatusOK, health)
}

// probe checks each named resource. Probe errors count as unhealthy.
func (s *Server) probe(ctx context.Context, kind string, names []string, exists func(context.Context, string) (bool, error)) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		ok, err := exists(ctx, name)
		if err != nil {
			s.logger.Warn("storage probe failed", "kind", kind, "name", name, "error", err)
		}
		out[name] = ok && err == nil
	}
	return out
}
