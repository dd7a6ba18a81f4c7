// Package healthcheck provides service to get grpc server health status.
package healthcheck

import (
	"context"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker for grpc server. The server is serving while ready
// reports true.
type HealthChecker struct {
	ready    func() bool
	interval time.Duration
}

func (s *HealthChecker) status() grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.ready == nil || s.ready() {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

// Check status and return a GRPC health response.
func (s *HealthChecker) Check(_ context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{
		Status: s.status(),
	}, nil
}

// Watch streams the current status, then every change of it until the
// client goes away.
func (s *HealthChecker) Watch(_ *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	last := s.status()
	if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-server.Context().Done():
			return nil
		case <-t.C:
			cur := s.status()
			if cur == last {
				continue
			}
			last = cur
			if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: cur}); err != nil {
				return err
			}
		}
	}
}

// GRPCHealthChecker requests to check the grpc server health. A nil ready
// func means always serving.
func GRPCHealthChecker(ready func() bool) *HealthChecker {
	return &HealthChecker{ready: ready, interval: time.Second}
}
