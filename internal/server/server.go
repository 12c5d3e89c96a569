package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/rangerd/internal/config"
	"github.com/me/rangerd/internal/scheduler"
	"github.com/me/rangerd/internal/store"
)

// Server is the rangerd REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	sched     scheduler.Scheduler
	auth      *scheduler.RevocationList
	registry  *prometheus.Registry // optional; nil falls back to the default gatherer
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithAuthorizer shares the revocation list consulted by the scheduler so
// that the admin endpoints can revoke and restore owners.
func WithAuthorizer(auth *scheduler.RevocationList) Option {
	return func(s *Server) {
		s.auth = auth
	}
}

// WithMetricsRegistry sets the Prometheus registry served at /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		sched:     sched,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = scheduler.NewRevocationList()
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// Operational endpoints outside the API envelope.
	r.Get("/healthz", s.handleHealthz)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Ranging requests. POST blocks until the request completes.
		r.Route("/rangings", func(r chi.Router) {
			r.Post("/", s.handleSubmitRanging)
			r.Get("/", s.handleListRangings)
			r.Get("/{id}", s.handleGetRanging)
		})

		// Peer directory
		r.Route("/peers", func(r chi.Router) {
			r.Get("/", s.handleListPeers)
			r.Put("/", s.handleUpsertPeer)
			r.Delete("/{handle}", s.handleDeletePeer)
		})

		// Owner authorization
		r.Route("/owners/{id}", func(r chi.Router) {
			r.Post("/revoke", s.handleRevokeOwner)
			r.Delete("/revoke", s.handleRestoreOwner)
		})

		// Scheduler administration
		r.Get("/status", s.handleStatus)
		r.Post("/enable", s.handleEnable)
		r.Post("/disable", s.handleDisable)
		r.Get("/dump", s.handleDump)
	})
}
