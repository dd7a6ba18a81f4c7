package healthcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestCheck(t *testing.T) {
	assert := require.New(t)

	ready := false
	h := GRPCHealthChecker(func() bool { return ready })

	resp, err := h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	ready = true
	resp, err = h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	resp, err = GRPCHealthChecker(nil).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
