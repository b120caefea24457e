// Package analytics derives dashboard metrics on demand from raw events, daily
// rollups and the read-only LMS records. Nothing here mutates state.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// Limits bound every scan. Reaching a cap truncates the result instead of
// failing the call.
type Limits struct {
	MaxProfiles     int
	MaxEvents       int
	MaxPathEvents   int
	MaxQuizAttempts int
	TopN            int
}

func DefaultLimits() Limits {
	return Limits{
		MaxProfiles:     1000,
		MaxEvents:       10000,
		MaxPathEvents:   1000,
		MaxQuizAttempts: 10000,
		TopN:            10,
	}
}

type Service struct {
	store     store.Store
	rollups   RollupReader
	profiles  ProfileReader
	attempts  AttemptReader
	resolver  *timerange.Resolver
	estimator SessionEstimator
	limits    Limits
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(
	s store.Store,
	rollups RollupReader,
	profiles ProfileReader,
	attempts AttemptReader,
	resolver *timerange.Resolver,
	limits Limits,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     s,
		rollups:   rollups,
		profiles:  profiles,
		attempts:  attempts,
		resolver:  resolver,
		estimator: FirstLastEstimator{},
		limits:    limits,
		logger:    logger,
	}
}

// WithEstimator replaces the session estimator used by engagement metrics.
func (s *Service) WithEstimator(e SessionEstimator) *Service {
	s.estimator = e
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Resolve exposes the period resolution used by every query.
func (s *Service) Resolve(period string) timerange.Range {
	return s.resolver.Resolve(period)
}

// scanEvents reads the events dated within rg, newest first, up to the
// MaxEvents cap.
func (s *Service) scanEvents(ctx context.Context, rg timerange.Range) ([]*event.Event, bool, error) {
	q := store.Where("date", store.OpGreaterOrEqual, rg.Start).
		And("date", store.OpLessOrEqual, rg.End).
		Order("timestamp", true).
		Take(s.limits.MaxEvents)

	docs, err := s.store.Query(ctx, event.Collection, q)
	if err != nil {
		s.logger.Error("Failed to scan events",
			zap.String("start", rg.Start),
			zap.String("end", rg.End),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("failed to scan events: %w", err)
	}

	events := make([]*event.Event, len(docs))
	for i, doc := range docs {
		events[i] = event.FromDocument(doc)
	}

	truncated := s.limits.MaxEvents > 0 && len(docs) >= s.limits.MaxEvents
	if truncated {
		s.logger.Warn("Event scan truncated",
			zap.String("start", rg.Start),
			zap.String("end", rg.End),
			zap.Int("max_events", s.limits.MaxEvents),
		)
	}

	return events, truncated, nil
}

// sortedKeys returns map keys in ascending order so that stable sorts over
// them break ties the same way on every call.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func observe(m *metrics.Metrics, operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveCompute(operation, start)
	}
}
