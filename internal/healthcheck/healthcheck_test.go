package healthcheck

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	internalstore "github.com/rmacdonaldsmith/eventstore-go/internal/eventstore"
)

func startHealthServer(t *testing.T, config Config) (*Server, *internalstore.InMemoryEventStore, healthpb.HealthClient) {
	t.Helper()

	store := internalstore.NewInMemoryEventStore()
	server := NewServer(store, config)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return server, store, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_ReportsStoreLiveness(t *testing.T) {
	server, store, client := startHealthServer(t, Config{})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	require.NoError(t, store.Close())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, server.Refresh())

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

func TestServer_UnknownService(t *testing.T) {
	_, _, client := startHealthServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "other"})
	assert.Error(t, err)
}

func TestServer_RunPicksUpChanges(t *testing.T) {
	server, store, client := startHealthServer(t, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		server.Run(ctx)
		close(done)
	}()

	require.NoError(t, store.Close())
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
