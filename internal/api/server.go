// Package api provides the read-only HTTP observability server for
// AquaSense Core: Prometheus metrics, health, correction loop status and the
// correction audit trail.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Nothing here writes to the database or publishes to the broker.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/aquasense-core/internal/aquarium"
	"github.com/nerrad567/aquasense-core/internal/correction"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/config"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/logging"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second

	// healthCheckTimeout bounds each dependency check in /healthz.
	healthCheckTimeout = 2 * time.Second
)

// HealthChecker is implemented by the database and MQTT clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusProvider exposes the correction loop snapshot.
type StatusProvider interface {
	Status() correction.Status
}

// AuditReader is the read side of the persistence gateway.
type AuditReader interface {
	ListLogs(ctx context.Context, filter aquarium.LogFilter) (*aquarium.LogListResult, error)
	GetSensorByType(ctx context.Context, sensorType string) (*aquarium.Sensor, error)
	GetDeviceByName(ctx context.Context, name string) (*aquarium.Device, error)
}

// Deps holds the dependencies required by the server.
type Deps struct {
	Config   config.MetricsConfig
	Logger   *logging.Logger
	Loop     StatusProvider
	Store    AuditReader
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Checks   map[string]HealthChecker
	Version  string
}

// Server is the observability HTTP server.
type Server struct {
	cfg      config.MetricsConfig
	logger   *logging.Logger
	loop     StatusProvider
	store    AuditReader
	gatherer prometheus.Gatherer
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Loop == nil {
		return nil, fmt.Errorf("correction loop is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		loop:     deps.Loop,
		store:    deps.Store,
		gatherer: gatherer,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Start launches the listener in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("observability server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("observability server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down observability server: %w", err)
	}
	return nil
}
