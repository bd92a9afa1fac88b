package handler

import (
	"context"
	"time"

	"github.com/hive-corporation/ioc-console/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RepositoryService is the health service name reported alongside the
// overall ("") status.
const RepositoryService = "ioc.v1.IOCRepository"

// HealthReporter mirrors store reachability into the standard gRPC
// health service.
type HealthReporter struct {
	health   *health.Server
	store    Pinger
	interval time.Duration
	log      logging.Logger
}

// NewGrpcServer builds a gRPC server exposing grpc.health.v1 and
// reflection. Statuses start as NOT_SERVING until the first check.
func NewGrpcServer(store Pinger, interval time.Duration, log logging.Logger) (*grpc.Server, *HealthReporter) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(RepositoryService, healthpb.HealthCheckResponse_NOT_SERVING)

	if interval <= 0 {
		interval = 15 * time.Second
	}

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s, &HealthReporter{
		health:   hs,
		store:    store,
		interval: interval,
		log:      log.With("component", "grpc-health"),
	}
}

// Check pings the store once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn(ctx, "store ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(RepositoryService, status)
	return status == healthpb.HealthCheckResponse_SERVING
}

// Run checks immediately and then every interval until ctx ends, when
// all services are marked NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) error {
	h.Check(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Check(ctx)
		case <-ctx.Done():
			h.health.Shutdown()
			return nil
		}
	}
}
