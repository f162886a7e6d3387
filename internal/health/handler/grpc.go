package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apphealth "github.com/jfkeci/job-board-sub000/internal/health"
)

// ServiceName is the gRPC health service name reported alongside the overall "" status.
const ServiceName = "jobboard.auth"

// GRPCSyncer mirrors the readiness checker into a grpc health server.
type GRPCSyncer struct {
	checker  *apphealth.Checker
	server   *health.Server
	interval time.Duration
}

const defaultSyncInterval = 10 * time.Second

// NewGRPCSyncer returns a syncer that re-checks readiness every interval (10s when zero).
func NewGRPCSyncer(checker *apphealth.Checker, server *health.Server, interval time.Duration) *GRPCSyncer {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &GRPCSyncer{checker: checker, server: server, interval: interval}
}

// Sync runs one check and publishes the status.
func (s *GRPCSyncer) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if !s.checker.Check(ctx).Ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.server.SetServingStatus("", status)
	s.server.SetServingStatus(ServiceName, status)
	return status
}

// Run syncs until ctx is done, then marks the service NOT_SERVING via Shutdown.
func (s *GRPCSyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.server.Shutdown()
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}
