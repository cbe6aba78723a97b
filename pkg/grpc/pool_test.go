package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufTarget = "passthrough:///bufnet"

func startHealthServer(t *testing.T) (*health.Server, grpc.DialOption) {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return hs, dialer
}

func TestPool_ReusesConnection(t *testing.T) {
	_, dialer := startHealthServer(t)
	p := NewPool()

	c1, err := p.GetConnection(bufTarget, dialer)
	require.NoError(t, err)
	c2, err := p.GetConnection(bufTarget, dialer)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	require.NoError(t, c1.Close())
	c3, err := p.GetConnection(bufTarget, dialer)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)

	assert.NoError(t, p.Close())
}

func TestPool_InterceptorAndWaitHealthy(t *testing.T) {
	hs, dialer := startHealthServer(t)

	var calls int
	p := NewPool(WithInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		calls++
		return invoker(ctx, method, req, reply, cc, opts...)
	}))
	t.Cleanup(func() { _ = p.Close() })
	_, err := p.GetConnection(bufTarget, dialer)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.WaitHealthy(ctx, bufTarget, "", 10*time.Millisecond))
	assert.GreaterOrEqual(t, calls, 1)

	hs.SetServingStatus("atm", healthpb.HealthCheckResponse_NOT_SERVING)
	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	assert.Error(t, p.WaitHealthy(short, bufTarget, "atm", 10*time.Millisecond))
}
