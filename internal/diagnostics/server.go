// Package diagnostics serves a small read-only HTTP API for operators:
// client health, counters, the connection journal and Prometheus metrics.
//
//	srv, err := diagnostics.New(deps)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
//
// Thread Safety: All methods are safe for concurrent use.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aGit2048/virtual-debugger/internal/client"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/logging"
	"github.com/aGit2048/virtual-debugger/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ClientView is the part of client.Client the server reads.
type ClientView interface {
	HealthCheck(ctx context.Context) error
	Stats() client.Stats
}

// EventLister reads the connection journal.
type EventLister interface {
	List(ctx context.Context, filter journal.Filter) (*journal.ListResult, error)
}

// Deps holds the dependencies required by the diagnostics server.
type Deps struct {
	Config  config.DiagnosticsConfig
	Logger  *logging.Logger
	Client  ClientView
	Events  EventLister         // optional: /api/v1/events answers 404 without it
	Metrics prometheus.Gatherer // optional: /metrics is not mounted without it
	Version string
}

// Server is the diagnostics HTTP server.
type Server struct {
	cfg     config.DiagnosticsConfig
	logger  *logging.Logger
	client  ClientView
	events  EventLister
	metrics prometheus.Gatherer
	version string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("client is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		client:  deps.Client,
		events:  deps.Events,
		metrics: deps.Metrics,
		version: deps.Version,
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Binding errors
// (port in use) are returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("diagnostics server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics server error", "error", err)
		}
	}()

	s.logger.Info("diagnostics server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("diagnostics server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down diagnostics server: %w", err)
	}
	return nil
}
