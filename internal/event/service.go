package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/pkg/kafka"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Aggregator folds a persisted event into the daily rollups.
type Aggregator interface {
	Apply(ctx context.Context, eventType string, eventData map[string]any, timestamp time.Time) error
}

// Publisher forwards persisted events downstream, e.g. to Kafka.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type TrackRequest struct {
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
}

type FailedEvent struct {
	Index     int    `json:"index"`
	EventType string `json:"eventType"`
	Error     string `json:"error"`
}

type BatchResult struct {
	Tracked []*Event      `json:"tracked"`
	Failed  []FailedEvent `json:"failed"`
}

type Service struct {
	store      store.Store
	aggregator Aggregator
	publisher  Publisher
	location   *time.Location
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewService(s store.Store, aggregator Aggregator, location *time.Location, logger *zap.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		store:      s,
		aggregator: aggregator,
		location:   location,
		logger:     logger,
	}
}

// WithPublisher makes the service forward every tracked event.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Track validates, stamps and persists one event, then updates its daily
// rollup. Once the event is stored the call succeeds: rollup and publish
// failures are logged and counted only.
func (s *Service) Track(ctx context.Context, eventType string, eventData map[string]any) (*Event, error) {
	if !IsValidType(eventType) {
		s.metrics.EventRejected("invalid_event_type")
		s.logger.Warn("Rejected event with unknown type", zap.String("event_type", eventType))
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}

	now := store.Now(s.store)
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	event := NewEvent(id, eventType, eventData, now, s.location)

	if err := s.store.Create(ctx, Collection, event.ID, event.Document()); err != nil {
		s.metrics.EventRejected("store_error")
		s.logger.Error("failed to create event",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.metrics.EventIngested(eventType)

	if err := s.aggregator.Apply(ctx, event.EventType, event.EventData, event.Timestamp); err != nil {
		s.metrics.RollupFailed()
		s.logger.Warn("Daily rollup update failed, event kept",
			zap.String("event_id", event.ID),
			zap.String("date", event.Date),
			zap.Error(err),
		)
	}

	if s.publisher != nil {
		// Events of one user share a partition.
		key := event.UserKey()
		if key == "" {
			key = event.ID
		}
		msg := kafka.Message{
			Key:     key,
			Value:   event,
			Headers: map[string]string{HeaderEventType: event.EventType},
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to publish tracked event",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("Event tracked",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("date", event.Date),
	)

	return event, nil
}

// TrackBatch tracks each request independently. A failing item never aborts
// the rest of the batch.
func (s *Service) TrackBatch(ctx context.Context, requests []TrackRequest) (*BatchResult, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &BatchResult{
		Tracked: make([]*Event, 0, len(requests)),
		Failed:  make([]FailedEvent, 0),
	}

	for i, req := range requests {
		event, err := s.Track(ctx, req.EventType, req.EventData)
		if err != nil {
			result.Failed = append(result.Failed, FailedEvent{
				Index:     i,
				EventType: req.EventType,
				Error:     err.Error(),
			})
			continue
		}
		result.Tracked = append(result.Tracked, event)
	}

	s.logger.Info("Event batch processed",
		zap.Int("total", len(requests)),
		zap.Int("tracked", len(result.Tracked)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

// HandleMessage is the Kafka entry point: the message value is a JSON
// TrackRequest.
func (s *Service) HandleMessage(ctx context.Context, key, value []byte) error {
	var req TrackRequest
	if err := json.Unmarshal(value, &req); err != nil {
		s.metrics.EventRejected("malformed_message")
		return fmt.Errorf("%w: %v", ErrInvalidEventData, err)
	}

	if _, err := s.Track(ctx, req.EventType, req.EventData); err != nil {
		if errors.Is(err, ErrInvalidEventType) {
			// Poison messages are dropped rather than retried.
			s.logger.Warn("Dropping message with unknown event type", zap.ByteString("key", key))
			return nil
		}
		return err
	}
	return nil
}

// HealthCheck probes the store with a one-document read.
func (s *Service) HealthCheck(ctx context.Context) (bool, map[string]string) {
	status := make(map[string]string)
	healthy := true

	if _, err := s.store.Query(ctx, Collection, store.Query{Limit: 1}); err != nil {
		status["store"] = err.Error()
		healthy = false
	} else {
		status["store"] = "ok"
	}

	if s.publisher != nil {
		status["kafka"] = "ok"
	} else {
		status["kafka"] = "disabled"
	}

	return healthy, status
}
