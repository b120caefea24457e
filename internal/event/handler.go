package event

import (
	"context"
	"errors"

	"github.com/Wuchinator/learning-analytics/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) TrackEvent(ctx context.Context, req *TrackEventRequest) (*TrackEventResponse, error) {
	h.logger.Debug("TrackEvent", zap.String("event_type", req.EventType))

	event, err := h.service.Track(ctx, req.EventType, req.EventData)
	if err != nil {
		return nil, toStatus(err)
	}

	return &TrackEventResponse{
		Success: true,
		EventID: event.ID,
		Date:    event.Date,
	}, nil
}

func (h *Handler) TrackEventBatch(ctx context.Context, req *TrackEventBatchRequest) (*TrackEventBatchResponse, error) {
	h.logger.Debug("TrackEventBatch called", zap.Int("event_count", len(req.Events)))

	result, err := h.service.TrackBatch(ctx, req.Events)
	if err != nil {
		return nil, toStatus(err)
	}

	ids := make([]string, len(result.Tracked))
	for i, event := range result.Tracked {
		ids[i] = event.ID
	}

	return &TrackEventBatchResponse{
		Success:        len(result.Failed) == 0,
		Message:        "Batch processed",
		ProcessedCount: len(result.Tracked),
		EventIDs:       ids,
		Failed:         result.Failed,
	}, nil
}

func (h *Handler) HealthCheck(ctx context.Context, _ *HealthCheckRequest) (*HealthCheckResponse, error) {
	healthy, dependencies := h.service.HealthCheck(ctx)

	state := "ok"
	if !healthy {
		state = "degraded"
	}

	return &HealthCheckResponse{
		Healthy:      healthy,
		Status:       state,
		Dependencies: dependencies,
	}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrInvalidEventType), errors.Is(err, ErrInvalidEventData), errors.Is(err, ErrEmptyBatch):
		return status.Errorf(codes.InvalidArgument, "can't track event: %v", err)
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.Unavailable, "can't track event: %v", err)
	default:
		return status.Errorf(codes.Internal, "can't track event: %v", err)
	}
}
