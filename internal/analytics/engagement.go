package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"go.uber.org/zap"
)

// GetEngagementMetrics builds the per-type, per-day and per-hour histograms of
// the period and estimates session time per user.
func (s *Service) GetEngagementMetrics(ctx context.Context, period string) (*EngagementMetrics, error) {
	defer observe(s.metrics, "engagement")()

	rg := s.resolver.Resolve(period)
	events, truncated, err := s.scanEvents(ctx, rg)
	if err != nil {
		return nil, err
	}
	return s.engagement(events, truncated), nil
}

func (s *Service) engagement(events []*event.Event, truncated bool) *EngagementMetrics {
	result := &EngagementMetrics{
		TotalEvents:  len(events),
		EventsByType: make(map[string]int),
		EventsByDay:  make(map[string]int),
		Truncated:    truncated,
	}

	byUser := make(map[string][]time.Time)
	for _, ev := range events {
		result.EventsByType[ev.EventType]++
		if ev.Date != "" {
			result.EventsByDay[ev.Date]++
		}
		if ev.Hour >= 0 && ev.Hour < len(result.EventsByHour) {
			result.EventsByHour[ev.Hour]++
		}
		// Sessions are keyed by userEmail only.
		if email := ev.Email(); email != "" {
			byUser[email] = append(byUser[email], ev.Timestamp)
		}
	}

	hist := newSessionHistogram()
	for _, user := range sortedKeys(byUser) {
		timestamps := byUser[user]
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

		estimate := s.estimator.Estimate(timestamps)
		result.TotalSessions += estimate.Sessions
		result.TotalSessionTime += estimate.Minutes
		hist.record(estimate.Minutes)
	}

	result.UniqueUsers = len(byUser)
	if result.TotalSessions > 0 {
		result.AverageSessionTime = round2(result.TotalSessionTime / float64(result.TotalSessions))
	}
	result.TotalSessionTime = round2(result.TotalSessionTime)
	result.SessionTimePercentiles = hist.percentiles()
	result.MostActiveHour = mostActiveHour(result.EventsByHour)
	result.PeakDay = peakDay(result.EventsByDay)

	s.logger.Debug("Engagement metrics computed",
		zap.Int("events", result.TotalEvents),
		zap.Int("users", result.UniqueUsers),
		zap.Bool("truncated", truncated),
	)

	return result
}

// mostActiveHour is the argmax of the histogram; ties go to the earliest hour.
func mostActiveHour(hours [24]int) int {
	best := 0
	for h := 1; h < len(hours); h++ {
		if hours[h] > hours[best] {
			best = h
		}
	}
	return best
}

// peakDay is the busiest date; ties go to the earliest date.
func peakDay(days map[string]int) string {
	best := ""
	for _, day := range sortedKeys(days) {
		if best == "" || days[day] > days[best] {
			best = day
		}
	}
	return best
}
