package grpc_control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name probes can ask for besides "".
const ServiceName = "market-metrics.Pipeline"

// HealthService serves the standard gRPC health protocol. Its status follows
// the result of pinging the store.
type HealthService struct {
	Config   *models.MConfig
	DB       interfaces.IDatabase
	Logger   *logger.Logger
	Health   *health.Server
	Interval time.Duration

	server *grpc.Server
	mu     sync.Mutex
	status healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthService creates a health server starting in NOT_SERVING.
func NewHealthService(cfg *models.MConfig, db interfaces.IDatabase, log *logger.Logger) *HealthService {
	s := &HealthService{
		Config:   cfg,
		DB:       db,
		Logger:   log,
		Health:   health.NewServer(),
		Interval: 15 * time.Second,
		status:   healthpb.HealthCheckResponse_UNKNOWN,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// -----------------------------------------------------------------------------

// Refresh pings the store once and publishes the resulting status.
func (s *HealthService) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := s.DB.Ping(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.Logger.Warning("Store ping failed: %v", err)
	}
	s.set(st)
	return st
}

// -----------------------------------------------------------------------------

// Watch refreshes the status every Interval until ctx is done.
func (s *HealthService) Watch(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and blocks serving.
func (s *HealthService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve runs the gRPC server on an existing listener.
func (s *HealthService) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.server == nil {
		s.server = grpc.NewServer()
		healthpb.RegisterHealthServer(s.server, s.Health)
		reflection.Register(s.server)
	}
	srv := s.server
	s.mu.Unlock()

	s.Logger.Info("gRPC health service listening on %s", lis.Addr())
	return srv.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop marks everything NOT_SERVING and stops the server.
func (s *HealthService) Stop() {
	s.Health.Shutdown()
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
}

// -----------------------------------------------------------------------------

func (s *HealthService) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()

	s.Health.SetServingStatus("", st)
	s.Health.SetServingStatus(ServiceName, st)
	if changed && s.Logger != nil {
		s.Logger.Info("Health status: %s", st)
	}
}
