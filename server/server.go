// Package server exposes the SPARQL endpoint, the browser query editor, and
// the chat API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/sparqlpad/assistant"
	"github.com/c360studio/sparqlpad/config"
	"github.com/c360studio/sparqlpad/graph"
)

const defaultPruneInterval = 10 * time.Minute

// Server wires the graph store, the snapshot provider, and the assistant
// engine behind a chi router.
type Server struct {
	cfg       *config.Config
	store     *graph.Store
	snapshots *graph.SnapshotProvider
	engine    *assistant.Engine
	metrics   *Metrics
	registry  *prometheus.Registry
	logger    *slog.Logger

	aiProvider string
	aiModel    string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAIInfo records which provider and model back the assistant, for the
// status endpoint. It has no behavioral effect.
func WithAIInfo(provider, model string) Option {
	return func(s *Server) {
		s.aiProvider = provider
		s.aiModel = model
	}
}

// New creates a Server. The prometheus registry, metrics, and completer
// instrumentation are owned here; callers wrap their completer with
// s.Metrics() via InstrumentCompleter before building the engine, or accept
// uninstrumented completions.
func New(cfg *config.Config, store *graph.Store, snapshots *graph.SnapshotProvider, engine *assistant.Engine, metrics *Metrics, registry *prometheus.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		snapshots: snapshots,
		engine:    engine,
		metrics:   metrics,
		registry:  registry,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.TriplesLoaded.Set(float64(store.Len()))
	return s
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/sparql", s.handleSPARQL)
	r.Post("/sparql", s.handleSPARQL)
	r.Get("/info", s.handleInfo)
	r.Get("/export", s.handleExport)
	r.Get("/prefixes", s.handlePrefixes)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleSessionCreate)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/reset", s.handleChatReset)
		r.Get("/ai/status", s.handleAIStatus)
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully. Idle chat sessions are pruned on a background ticker for the
// lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go s.pruneLoop(pruneCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) pruneLoop(ctx context.Context) {
	ttl := s.cfg.Server.SessionTTL
	if ttl <= 0 {
		return
	}

	interval := defaultPruneInterval
	if ttl < interval {
		interval = ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.engine.Store().Prune(ttl); dropped > 0 {
				s.logger.Info("Pruned idle chat sessions", "dropped", dropped)
			}
		}
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
