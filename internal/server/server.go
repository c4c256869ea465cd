// Package server exposes a session's derived views to the display layer over
// HTTP: JSON snapshots plus a server-sent event stream of changes.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/diffwatch/internal/events"
	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/logfields"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
	"git.home.luguber.info/inful/diffwatch/internal/reconcile"
	"git.home.luguber.info/inful/diffwatch/internal/server/middleware"
	"git.home.luguber.info/inful/diffwatch/internal/stats"
	"git.home.luguber.info/inful/diffwatch/internal/update"
)

// View is the read side of a session.
type View interface {
	ID() string
	CurrentPhase() (phase.Phase, error)
	ReconciledComparisons() []reconcile.Comparison
	Stats() stats.Stats
	Latest() (update.Event, bool)
	Repository() (update.Repository, bool)
	PullRequestsURL() string
	Bus() *events.Bus
}

// Config configures the listener and optional metrics endpoint.
type Config struct {
	Addr string
	// Metrics is served at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
	// Heartbeat is the interval of keep-alive comments on event streams.
	Heartbeat time.Duration
}

// Server serves the display API for one session.
type Server struct {
	cfg     Config
	view    View
	logger  *slog.Logger
	errors  *ferrors.HTTPErrorAdapter
	httpSrv *http.Server
	started time.Time
}

// New creates a server. Nothing listens until Start.
func New(cfg Config, view View, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	return &Server{
		cfg:     cfg,
		view:    view,
		logger:  logger,
		errors:  ferrors.NewHTTPErrorAdapter(logger),
		started: time.Now(),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/phase", s.handlePhase)
	mux.HandleFunc("GET /api/comparisons", s.handleComparisons)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/repository", s.handleRepository)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	if s.cfg.Metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.cfg.Metrics)
	}
	return middleware.Chain(s.logger, s.errors)(mux)
}

// Start binds the listener before returning, so an address in use fails
// fast, and serves until ctx ends or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "bind display API listener").
			WithContext("addr", s.cfg.Addr).
			Build()
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("Display API listening", logfields.Addr(ln.Addr().String()))

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Display API stopped", logfields.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open event
// streams end when the session's bus closes or ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
