package event

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startIngestionServer(t *testing.T, svc *Service) *IngestionClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterIngestionServer(server, NewHandler(svc, zap.NewNop()))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewIngestionClient(conn)
}

func TestGRPCTrackEvent(t *testing.T) {
	svc, _ := newTestService(&recordingAggregator{})
	client := startIngestionServer(t, svc)
	ctx := context.Background()

	resp, err := client.TrackEvent(ctx, &TrackEventRequest{
		EventType: EventTypeCourseEnrollment,
		EventData: map[string]any{"courseId": "X"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, "2026-03-15", resp.Date)

	_, err = client.TrackEvent(ctx, &TrackEventRequest{EventType: "unknown"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCTrackEventBatchAndHealth(t *testing.T) {
	svc, _ := newTestService(&recordingAggregator{})
	client := startIngestionServer(t, svc)
	ctx := context.Background()

	resp, err := client.TrackEventBatch(ctx, &TrackEventBatchRequest{Events: []TrackRequest{
		{EventType: EventTypeLogin, EventData: map[string]any{"userEmail": "a@x.io"}},
		{EventType: "bad"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.ProcessedCount)
	assert.Len(t, resp.EventIDs, 1)
	require.Len(t, resp.Failed, 1)

	_, err = client.TrackEventBatch(ctx, &TrackEventBatchRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	health, err := client.HealthCheck(ctx, &HealthCheckRequest{})
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, "ok", health.Dependencies["store"])
	assert.Equal(t, "disabled", health.Dependencies["kafka"])
}
