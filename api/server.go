// Package api exposes the entity store, queues, blobs and the file share over
// HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jacentio/storefront/blob"
	"github.com/jacentio/storefront/internal/metrics"
	"github.com/jacentio/storefront/queue"
	"github.com/jacentio/storefront/store"
)

// EntityStore is the store surface the API uses. *store.Store satisfies it.
type EntityStore interface {
	ListAll(ctx context.Context, table string) ([]*store.Record, error)
	Get(ctx context.Context, table, partitionKey, rowKey string) (*store.Record, error)
	Add(ctx context.Context, table string, payload []byte) (*store.Record, error)
	Update(ctx context.Context, table string, payload []byte) (*store.Record, error)
	Delete(ctx context.Context, table, partitionKey, rowKey string) error
	EnsureTable(ctx context.Context, table string) error
	Exists(ctx context.Context, table string) (bool, error)
}

// MessageQueue is the queue surface the API uses. *queue.Queue satisfies it.
type MessageQueue interface {
	Ensure(ctx context.Context, name string) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Send(ctx context.Context, name, body string) (string, error)
	ReceiveOne(ctx context.Context, name string) (queue.Message, error)
}

// BlobStore is the object storage surface the API uses. *blob.Store satisfies it.
type BlobStore interface {
	EnsureContainer(ctx context.Context, container string) error
	Exists(ctx context.Context, container string) (bool, error)
	Upload(ctx context.Context, container, filename, contentType string, body io.Reader) (*blob.Object, error)
	Download(ctx context.Context, container, key string) (io.ReadCloser, *blob.Object, error)
	Delete(ctx context.Context, container, key string) error
	List(ctx context.Context, container, prefix string) ([]blob.Entry, error)
	EnsureDirectory(ctx context.Context, share, directory string) error
	UploadToShare(ctx context.Context, share, directory, filename, contentType string, body io.Reader) (string, error)
}

// Deps are the backends behind the API.
type Deps struct {
	Store   EntityStore
	Queue   MessageQueue
	Blobs   BlobStore
	Metrics *metrics.Collector
}

// Server routes HTTP requests to the backends.
type Server struct {
	store   EntityStore
	queue   MessageQueue
	blobs   BlobStore
	metrics *metrics.Collector
	config  Config
	logger  *slog.Logger
	router  *mux.Router
}

// NewServer creates a server and registers its routes.
func NewServer(deps Deps, config Config, logger *slog.Logger) *Server {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   deps.Store,
		queue:   deps.Queue,
		blobs:   deps.Blobs,
		metrics: deps.Metrics,
		config:  config,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(MetricsMiddleware(s.metrics), LoggingMiddleware(s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/table/{table}", s.handleListEntities).Methods(http.MethodGet)
	r.HandleFunc("/table/{table}", s.handleAddEntity).Methods(http.MethodPost)
	r.HandleFunc("/table/{table}", s.handleUpdateEntity).Methods(http.MethodPut)
	r.HandleFunc("/table/{table}/{partitionKey}/{rowKey}", s.handleGetEntity).Methods(http.MethodGet)
	r.HandleFunc("/table/{table}/{partitionKey}/{rowKey}", s.handleDeleteEntity).Methods(http.MethodDelete)

	r.HandleFunc("/queue/{queue}", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/queue/{queue}", s.handleReceiveMessage).Methods(http.MethodGet)
	r.HandleFunc("/orders/enqueue", s.handleEnqueueOrder).Methods(http.MethodPost)

	r.HandleFunc("/blob/{container}", s.handleUploadBlob).Methods(http.MethodPost)
	r.HandleFunc("/blob/{container}", s.handleListBlobs).Methods(http.MethodGet)
	r.HandleFunc("/blob/{container}/{blob}", s.handleDownloadBlob).Methods(http.MethodGet)
	r.HandleFunc("/blob/{container}/{blob}", s.handleDeleteBlob).Methods(http.MethodDelete)

	r.HandleFunc("/fileshare/{share}", s.handleUploadToShare).Methods(http.MethodPost)
	r.HandleFunc("/fileshare/{share}", s.handleListShare).Methods(http.MethodGet)
	r.HandleFunc("/fileshare/{share}/{file}", s.handleDownloadFromShare).Methods(http.MethodGet)
	r.HandleFunc("/fileshare/{share}/{file}", s.handleDeleteFromShare).Methods(http.MethodDelete)

	r.HandleFunc("/storage/initialize", s.handleInitializeStorage).Methods(http.MethodPost)
	r.HandleFunc("/storage/health", s.handleStorageHealth).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
