package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jfkeci/job-board-sub000/internal/server/interceptors"
)

// Deps holds optional service dependencies for the gRPC listener.
type Deps struct {
	// Health is the standard health server. If nil, a new one is created and left SERVING.
	Health *health.Server
	// Reflection registers the reflection service for grpcurl. Disabled in production.
	Reflection bool
}

// NewGRPCServer returns a gRPC server instrumented with otelgrpc, panic recovery and request
// logging. Health Check calls are not logged.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	logger := slog.Default().With("module", "grpc")
	skip := map[string]bool{healthpb.Health_Check_FullMethodName: true}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(logger),
			interceptors.LoggingUnary(logger, skip),
		),
		grpc.ChainStreamInterceptor(interceptors.LoggingStream(logger)),
	}, opts...)
	return grpc.NewServer(opts...)
}

// RegisterServices registers the gRPC services with the given server and returns the health server.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → google.golang.org/grpc/health, fed by internal/health/handler.GRPCSyncer
//   - grpc.reflection.v1    → google.golang.org/grpc/reflection (optional)
func RegisterServices(s *grpc.Server, deps Deps) *health.Server {
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	if deps.Reflection {
		reflection.Register(s)
	}
	return hs
}
