// Package server exposes the action agent over HTTP.
//
// Routes:
//
//	GET     /check-connection/{userId}/{app}
//	GET     /connect-app/{userId}/{app}
//	POST    /run-agent
//	OPTIONS /*
//	GET     /health
//	GET     /metrics
//
// The /api/... paths called by the web front-end are served as aliases.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/itsneelabh/actionagent/agent"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

// Agent runs instructions
type Agent interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// ConnectionManager answers connection questions for the HTTP surface
type ConnectionManager interface {
	IsConnected(ctx context.Context, userID, app string) (bool, error)
	Connect(ctx context.Context, userID, app string) (*agent.ConnectResult, error)
}

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// Server is the HTTP front of the action agent
type Server struct {
	config      *core.Config
	agent       Agent
	connections ConnectionManager
	logger      core.Logger
	metrics     *telemetry.Metrics
	checks      map[string]HealthCheck
	startedAt   time.Time

	httpServer *http.Server
}

// Option customises a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics serves m on the configured metrics path
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheck adds a named dependency check to /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// New creates a server. config, runner and connections are required.
func New(config *core.Config, runner Agent, connections ConnectionManager, opts ...Option) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server: config is required: %w", core.ErrMissingConfiguration)
	}
	if runner == nil || connections == nil {
		return nil, fmt.Errorf("server: agent and connection manager are required: %w", core.ErrMissingConfiguration)
	}

	s := &Server{
		config:      config,
		agent:       runner,
		connections: connections,
		logger:      &core.NoOpLogger{},
		checks:      make(map[string]HealthCheck),
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cal, ok := s.logger.(core.ComponentAwareLogger); ok {
		s.logger = cal.WithComponent("server")
	}
	return s, nil
}

// Handler builds the router with its middleware chain
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(core.RequestIDMiddleware)
	r.Use(telemetry.TracingMiddleware(s.config.Name, &telemetry.TracingMiddlewareConfig{
		ExcludedPaths: []string{"/health", s.config.Telemetry.MetricsPath},
	}))
	r.Use(core.LoggingMiddleware(s.logger, s.config.Development.Enabled, 0))
	r.Use(core.CORSMiddleware(&s.config.HTTP.CORS))
	r.Use(s.preflight)

	r.Get("/check-connection/{userId}/{app}", s.handleCheckConnection)
	r.Get("/connect-app/{userId}/{app}", s.handleConnectApp)
	r.Post("/run-agent", s.handleRunAgent)

	r.Route("/api", func(r chi.Router) {
		r.Get("/check-connect-app/{userId}/{app}", s.handleCheckConnection)
		r.Get("/connect-app/{userId}/{app}", s.handleConnectApp)
		r.Post("/run-agent", s.handleRunAgent)
	})

	r.Get("/health", s.handleHealth)

	if s.metrics != nil && s.config.Telemetry.MetricsEnabled {
		path := s.config.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.metrics.Handler())
	}

	return r
}

// Start listens on the configured address until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}

	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"address": addr,
		"cors":    s.config.HTTP.CORS.Enabled,
		"dev":     s.config.Development.Enabled,
	})

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if t := s.config.HTTP.ShutdownTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	s.logger.Info("Shutting down HTTP server", nil)
	return s.httpServer.Shutdown(ctx)
}
