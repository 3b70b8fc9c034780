// Package healthcheck exposes event store liveness over the standard gRPC health protocol.
package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// ServiceName is the service reported alongside the server-wide "" entry
const ServiceName = "eventstore.v1.EventStore"

// Config holds health server configuration
type Config struct {
	// Interval between liveness polls of the store
	Interval time.Duration
	Logger   *slog.Logger
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Server serves grpc.health.v1.Health backed by a HealthChecker
type Server struct {
	checker  eventstore.HealthChecker
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	logger   *slog.Logger
}

// NewServer creates a health server and publishes the checker's current status
func NewServer(checker eventstore.HealthChecker, config Config) *Server {
	config.SetDefaults()

	s := &Server{
		checker:  checker,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		interval: config.Interval,
		logger:   config.Logger.With("component", "healthcheck"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.Refresh()

	return s
}

// Refresh polls the checker once and publishes the result
func (s *Server) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.checker.Healthy() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run refreshes the status every interval until ctx is done
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := s.Refresh(); status != last {
				s.logger.Info("health status changed", "from", last.String(), "to", status.String())
				last = status
			}
		}
	}
}

// Serve accepts gRPC connections on l until Stop
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("grpc health listening", "address", l.Addr().String())
	return s.grpc.Serve(l)
}

// Stop marks every service NOT_SERVING and drains in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
