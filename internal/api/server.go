// Package api serves a read-only JSON status API for the gateway, its
// modules and their availability.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/zberg/go-flexismart/internal/config"
	"github.com/zberg/go-flexismart/internal/coordinator"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

// Devices gives access to the polled modules. *coordinator.Hub implements it.
type Devices interface {
	Devices() []*coordinator.DeviceCoordinator
	Device(key coordinator.ModuleKey) (*coordinator.DeviceCoordinator, bool)
}

// Deps holds what the server reads from.
type Deps struct {
	Config  config.APIConfig
	Logger  *slog.Logger
	Devices Devices
	Gateway *coordinator.Coordinator[coordinator.GatewayInfo]
	Zones   *coordinator.Coordinator[[]int]
	Version string
}

// Server is the status HTTP server.
type Server struct {
	cfg     config.APIConfig
	logger  *slog.Logger
	devices Devices
	gateway *coordinator.Coordinator[coordinator.GatewayInfo]
	zones   *coordinator.Coordinator[[]int]
	version string
	server  *http.Server
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Devices == nil {
		return nil, errors.New("devices are required")
	}
	if deps.Gateway == nil || deps.Zones == nil {
		return nil, errors.New("gateway and zones coordinators are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:     deps.Config,
		logger:  logger,
		devices: deps.Devices,
		gateway: deps.Gateway,
		zones:   deps.Zones,
		version: deps.Version,
	}, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close waits for in-flight requests, then stops the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
