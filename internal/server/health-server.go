package server

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1 for the service. Consul checks it.
type HealthServer struct {
	Addr         string
	ServiceName  string
	grpcServer   *grpc.Server
	healthServer *health.Server
	logger       hclog.Logger
}

func NewHealthServer(port int, serviceName string, logger hclog.Logger) *HealthServer {
	g := &HealthServer{
		Addr:         fmt.Sprintf(":%d", port),
		ServiceName:  serviceName,
		grpcServer:   grpc.NewServer(),
		healthServer: health.NewServer(),
		logger:       logger,
	}
	grpc_health_v1.RegisterHealthServer(g.grpcServer, g.healthServer)
	return g
}

func (g *HealthServer) Run(done chan<- error) {
	lis, err := net.Listen("tcp", g.Addr)
	if err != nil {
		done <- fmt.Errorf("failed to listen on %s: %w", g.Addr, err)
		return
	}
	g.logger.Info("gRPC health server running", "addr", g.Addr)
	done <- g.Serve(lis)
}

// Serve marks the service SERVING and blocks until the server stops.
func (g *HealthServer) Serve(lis net.Listener) error {
	g.healthServer.SetServingStatus(g.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	if err := g.grpcServer.Serve(lis); err != nil {
		g.healthServer.SetServingStatus(g.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (g *HealthServer) End(ctx context.Context) error {
	g.logger.Info("stopping gRPC health server")
	g.healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		g.grpcServer.Stop()
		return ctx.Err()
	}
}
