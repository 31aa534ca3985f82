// Package httpapi exposes the conversation memory as a JSON HTTP API.
//
// Routes:
//
//	POST   /threads                          create a thread
//	GET    /threads/{id}                     fetch a thread
//	PATCH  /threads/{id}                     update title and/or metadata
//	DELETE /threads/{id}                     delete a thread and its messages
//	GET    /resources/{rid}/threads          list threads, optional ?filter=<CEL>
//	DELETE /resources/{rid}/threads          delete every thread of a resource
//	POST   /threads/{id}/messages            append a message
//	GET    /threads/{id}/messages            ?last=N | ?first=N | ?all=true
//	POST   /admin/flush                      flush the backend, if allowed
//	GET    /healthz                          backend health
//	GET    /metrics                          Prometheus metrics
//
// Errors are returned as {"error": "..."} with a status derived from
// coachmem.KindOf.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zero-day-ai/coachmem/health"
	"github.com/zero-day-ai/coachmem/memory"
	"github.com/zero-day-ai/coachmem/store"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// Memory is the set of memory operations served over HTTP. *memory.Adapter
// and *coachmem.Memory satisfy it.
type Memory interface {
	CreateThread(ctx context.Context, resourceID, title string, metadata map[string]any) (*store.Thread, error)
	GetThreadByID(ctx context.Context, id string) (*store.Thread, error)
	GetThreadsByResourceID(ctx context.Context, resourceID string) ([]store.Thread, error)
	FilterThreads(ctx context.Context, resourceID, expr string) ([]store.Thread, error)
	UpdateThread(ctx context.Context, id string, update store.ThreadUpdate) (*store.Thread, error)
	DeleteThread(ctx context.Context, id string) (bool, error)
	ClearResource(ctx context.Context, resourceID string) (int, error)
	AddMessage(ctx context.Context, threadID string, role store.Role, content string, metadata map[string]any) (*store.Message, error)
	Query(ctx context.Context, threadID string, sel memory.SelectBy) (*memory.QueryResult, error)
	Ping(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

var _ Memory = (*memory.Adapter)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus collectors. Defaults to NewMetrics().
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHealth sets the source of /healthz. Defaults to a live backend check.
func WithHealth(fn func(ctx context.Context) health.Status) Option {
	return func(s *Server) {
		if fn != nil {
			s.health = fn
		}
	}
}

// Server holds the HTTP handlers.
type Server struct {
	mem     Memory
	logger  *slog.Logger
	metrics *Metrics
	health  func(ctx context.Context) health.Status
	router  chi.Router
}

// New creates a Server for mem.
func New(mem Memory, opts ...Option) *Server {
	s := &Server{
		mem:    mem,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.health == nil {
		s.health = func(ctx context.Context) health.Status {
			return health.Combine(map[string]health.Status{
				"backend": health.BackendCheck(ctx, mem, 0),
			})
		}
	}
	s.logger = s.logger.With("component", "httpapi")
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(maxBodySize(MaxBodyBytes))

	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/healthz", s.handleHealth)

	r.Post("/threads", s.handleCreateThread)
	r.Route("/threads/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetThread)
		r.Patch("/", s.handleUpdateThread)
		r.Delete("/", s.handleDeleteThread)
		r.Post("/messages", s.handleAddMessage)
		r.Get("/messages", s.handleQuery)
	})

	r.Get("/resources/{rid}/threads", s.handleListThreads)
	r.Delete("/resources/{rid}/threads", s.handleClearResource)

	r.Post("/admin/flush", s.handleFlush)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := s.health(ctx)
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
