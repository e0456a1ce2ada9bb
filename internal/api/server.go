package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/config"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds one PUT /devices/{id}/state call, including the
// bulb debounce window.
const commandTimeout = 15 * time.Second

// Core is the bridge core as seen by the API. *platform.Platform satisfies it.
type Core interface {
	Devices() []device.State
	Device(id string) (device.State, bool)
	ApplyLocalCommand(ctx context.Context, id string, cmd device.Command) error
	Status() platform.Status
}

// ConnectionChecker reports whether an optional dependency is connected.
// *mqtt.Client and *influxdb.Client satisfy it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger
	Core   Core

	// MQTT and InfluxDB are optional and only reported in metrics.
	MQTT     ConnectionChecker
	InfluxDB ConnectionChecker

	Version string
}

// Server is the local HTTP API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	core      Core
	mqtt      ConnectionChecker
	influx    ConnectionChecker
	version   string
	startTime time.Time
	hub       *Hub
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
}

// New creates a new API server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Core == nil {
		return nil, errors.New("core is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		core:      deps.Core,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Name implements platform.Host.
func (s *Server) Name() string { return "api" }

// Register implements platform.Host. Newly discovered devices are announced
// to WebSocket clients.
func (s *Server) Register(m device.Model) error {
	s.hub.Broadcast(ChannelDeviceRegistered, m.State())
	return nil
}

// Update implements platform.Host.
func (s *Server) Update(st device.State) {
	s.hub.Broadcast(ChannelDeviceStateChanged, st)
}

// Start binds the listener and serves in a background goroutine.
// The returned error reports bind failures such as a port already in use.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}
