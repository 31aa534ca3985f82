package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/zero-day-ai/coachmem/health"
)

// serviceName is the gRPC health service name reported next to the
// overall ("") status.
const serviceName = "coachmem"

// grpcServer serves the standard gRPC health protocol.
type grpcServer struct {
	server   *grpc.Server
	listener net.Listener
	health   *grpchealth.Server
	timeout  time.Duration
	logger   *slog.Logger
}

func newGRPCServer(addr string, timeout time.Duration, logger *slog.Logger) (*grpcServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	s := &grpcServer{
		server:   server,
		listener: listener,
		health:   healthServer,
		timeout:  timeout,
		logger:   logger.With("component", "grpc"),
	}
	s.setStatus(health.Unhealthy("starting", nil))
	return s, nil
}

// setStatus maps a health status onto the gRPC serving status. Degraded
// still serves.
func (s *grpcServer) setStatus(status health.Status) {
	serving := grpc_health_v1.HealthCheckResponse_SERVING
	if status.IsUnhealthy() {
		serving = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(serviceName, serving)
}

func (s *grpcServer) addr() net.Addr {
	return s.listener.Addr()
}

// serve blocks until the server stops.
func (s *grpcServer) serve() error {
	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("gRPC server error: %w", err)
	}
	return nil
}

// gracefulStop waits for in-flight RPCs up to the timeout, then forces the
// server down.
func (s *grpcServer) gracefulStop() {
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop")
		s.server.Stop()
	}
}
