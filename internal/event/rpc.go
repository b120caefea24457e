package event

import (
	"context"

	"github.com/Wuchinator/learning-analytics/pkg/grpcjson"
	"google.golang.org/grpc"
)

const ServiceName = "learninganalytics.events.v1.IngestionService"

const (
	methodTrackEvent      = "/" + ServiceName + "/TrackEvent"
	methodTrackEventBatch = "/" + ServiceName + "/TrackEventBatch"
	methodHealthCheck     = "/" + ServiceName + "/HealthCheck"
)

type TrackEventRequest struct {
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
}

type TrackEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId,omitempty"`
	Date    string `json:"date,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TrackEventBatchRequest struct {
	Events []TrackRequest `json:"events"`
}

type TrackEventBatchResponse struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ProcessedCount int           `json:"processedCount"`
	EventIDs       []string      `json:"eventIds"`
	Failed         []FailedEvent `json:"failed,omitempty"`
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Healthy      bool              `json:"healthy"`
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// IngestionServer is the server API of the ingestion service.
type IngestionServer interface {
	TrackEvent(context.Context, *TrackEventRequest) (*TrackEventResponse, error)
	TrackEventBatch(context.Context, *TrackEventBatchRequest) (*TrackEventBatchResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

func RegisterIngestionServer(s grpc.ServiceRegistrar, srv IngestionServer) {
	s.RegisterService(&IngestionServiceDesc, srv)
}

var IngestionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TrackEvent",
			Handler:    trackEventHandler,
		},
		{
			MethodName: "TrackEventBatch",
			Handler:    trackEventBatchHandler,
		},
		{
			MethodName: "HealthCheck",
			Handler:    healthCheckHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "learninganalytics/events/v1",
}

func trackEventHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TrackEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).TrackEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodTrackEvent}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).TrackEvent(ctx, req.(*TrackEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func trackEventBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TrackEventBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).TrackEventBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodTrackEventBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).TrackEventBatch(ctx, req.(*TrackEventBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestionServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHealthCheck}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestionServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestionClient calls the ingestion service using the JSON codec.
type IngestionClient struct {
	cc grpc.ClientConnInterface
}

func NewIngestionClient(cc grpc.ClientConnInterface) *IngestionClient {
	return &IngestionClient{cc: cc}
}

func (c *IngestionClient) TrackEvent(ctx context.Context, in *TrackEventRequest, opts ...grpc.CallOption) (*TrackEventResponse, error) {
	out := new(TrackEventResponse)
	if err := c.cc.Invoke(ctx, methodTrackEvent, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestionClient) TrackEventBatch(ctx context.Context, in *TrackEventBatchRequest, opts ...grpc.CallOption) (*TrackEventBatchResponse, error) {
	out := new(TrackEventBatchResponse)
	if err := c.cc.Invoke(ctx, methodTrackEventBatch, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestionClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, methodHealthCheck, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpcjson.CallOption()}, opts...)
}
