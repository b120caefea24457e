// Package rollup maintains the per-day counter documents that back the coarse
// totals of the analytics overview.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

type Aggregator struct {
	store    store.Store
	location *time.Location
	maxKeys  int
	logger   *zap.Logger
}

// NewAggregator builds an aggregator writing day keys in loc. maxKeys caps the
// distinct course keys kept per day; 0 disables the cap.
func NewAggregator(s store.Store, loc *time.Location, maxKeys int, logger *zap.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		store:    s,
		location: loc,
		maxKeys:  maxKeys,
		logger:   logger,
	}
}

// Deltas lists the counter increments one event contributes to its day.
//
// A course_enrollment without courseId is counted under "unknown". A
// quiz_complete without a numeric score counts as a completion but lands in
// no score bucket. Logins are counted per event, not per distinct user.
func Deltas(eventType string, data map[string]any) map[string]int64 {
	deltas := map[string]int64{
		fieldEvents + "." + eventType: 1,
	}

	switch eventType {
	case event.EventTypeCourseEnrollment:
		courseID, _ := store.AsString(data[event.FieldCourseID])
		deltas[fieldEnrollments+"."+sanitizeKey(courseID)] = 1
		deltas[fieldTotalEnrollments] = 1
	case event.EventTypeQuizComplete:
		deltas[fieldQuizCompletions] = 1
		if score, ok := store.AsFloat64(data[event.FieldScore]); ok {
			deltas[fieldQuizScores+"."+BucketKey(score)] = 1
		}
	case event.EventTypeLogin:
		deltas[fieldUniqueLogins] = 1
	case event.EventTypeAchievementUnlock:
		deltas[fieldAchievementsUnlocked] = 1
	}

	return deltas
}

// Apply records one event in the rollup of the day its timestamp falls on.
// All counters move in a single atomic increment.
func (a *Aggregator) Apply(ctx context.Context, eventType string, data map[string]any, timestamp time.Time) error {
	date := timestamp.In(a.location).Format(timerange.DateLayout)
	deltas := Deltas(eventType, data)

	if err := a.capCourseKeys(ctx, date, deltas); err != nil {
		return err
	}

	if err := a.store.Increment(ctx, Collection, date, deltas); err != nil {
		return fmt.Errorf("failed to increment daily rollup: %w", err)
	}

	if err := a.store.Merge(ctx, Collection, date, store.Document{
		fieldDate:        date,
		fieldLastUpdated: timestamp,
	}); err != nil {
		return fmt.Errorf("failed to stamp daily rollup: %w", err)
	}

	a.logger.Debug("Daily rollup updated",
		zap.String("date", date),
		zap.String("event_type", eventType),
		zap.Int("fields", len(deltas)),
	)

	return nil
}

// capCourseKeys redirects an enrollment for a new course to the overflow key
// once the day already tracks maxKeys courses. The check is a soft limit:
// concurrent writers may overshoot it slightly.
func (a *Aggregator) capCourseKeys(ctx context.Context, date string, deltas map[string]int64) error {
	if a.maxKeys <= 0 {
		return nil
	}
	path, ok := enrollmentPath(deltas)
	if !ok {
		return nil
	}

	doc, err := a.store.Get(ctx, Collection, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read daily rollup: %w", err)
	}

	existing := doc.Map(fieldEnrollments)
	key := strings.TrimPrefix(path, fieldEnrollments+".")
	if _, tracked := existing[key]; tracked || len(existing) < a.maxKeys {
		return nil
	}

	delete(deltas, path)
	deltas[fieldEnrollments+"."+OverflowKey] = 1

	a.logger.Warn("Course key cap reached, folding into overflow",
		zap.String("date", date),
		zap.String("course_id", key),
		zap.Int("max_keys", a.maxKeys),
	)
	return nil
}

func enrollmentPath(deltas map[string]int64) (string, bool) {
	prefix := fieldEnrollments + "."
	for path := range deltas {
		if strings.HasPrefix(path, prefix) {
			return path, true
		}
	}
	return "", false
}
