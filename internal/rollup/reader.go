package rollup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

type Reader struct {
	store  store.Store
	logger *zap.Logger
}

func NewReader(s store.Store, logger *zap.Logger) *Reader {
	return &Reader{
		store:  s,
		logger: logger,
	}
}

// Range returns the rollups of every day in rg that saw at least one event,
// ordered by date.
func (r *Reader) Range(ctx context.Context, rg timerange.Range) ([]DailyRollup, error) {
	q := store.Where(store.KeyField, store.OpGreaterOrEqual, rg.Start).
		And(store.KeyField, store.OpLessOrEqual, rg.End).
		Order(store.KeyField, false)

	docs, err := r.store.Query(ctx, Collection, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily rollups: %w", err)
	}

	rollups := make([]DailyRollup, 0, len(docs))
	for _, doc := range docs {
		rollups = append(rollups, fromDocument(doc))
	}

	r.logger.Debug("Daily rollups read",
		zap.String("start", rg.Start),
		zap.String("end", rg.End),
		zap.Int("days", len(rollups)),
	)

	return rollups, nil
}

// Get returns a zero rollup for a day without events.
func (r *Reader) Get(ctx context.Context, date string) (*DailyRollup, error) {
	doc, err := r.store.Get(ctx, Collection, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newDailyRollup(date), nil
		}
		return nil, fmt.Errorf("failed to get daily rollup: %w", err)
	}
	rollup := fromDocument(doc)
	return &rollup, nil
}

// Sum adds up a set of daily rollups. The result carries no date.
func Sum(rollups []DailyRollup) DailyRollup {
	total := *newDailyRollup("")
	for _, r := range rollups {
		total.Events.Add(r.Events)
		total.Enrollments.Add(r.Enrollments)
		total.QuizScores.Add(r.QuizScores)
		total.TotalEnrollments += r.TotalEnrollments
		total.QuizCompletions += r.QuizCompletions
		total.UniqueLogins += r.UniqueLogins
		total.AchievementsUnlocked += r.AchievementsUnlocked
		if r.LastUpdated.After(total.LastUpdated) {
			total.LastUpdated = r.LastUpdated
		}
	}
	return total
}

// Rebuild recomputes a day's rollup from raw events and stores the result in
// RebuiltCollection, leaving the live rollup untouched. Up to maxEvents events
// are scanned; truncated reports whether the scan hit that cap.
func (a *Aggregator) Rebuild(ctx context.Context, date string, maxEvents int) (*DailyRollup, bool, error) {
	q := store.Where("date", store.OpEqual, date)
	if maxEvents > 0 {
		q = q.Take(maxEvents)
	}

	docs, err := a.store.Query(ctx, event.Collection, q)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query events for rebuild: %w", err)
	}

	rebuilt := newDailyRollup(date)
	for _, doc := range docs {
		ev := event.FromDocument(doc)
		deltas := Deltas(ev.EventType, ev.EventData)
		if path, ok := enrollmentPath(deltas); ok && a.maxKeys > 0 {
			key := strings.TrimPrefix(path, fieldEnrollments+".")
			if _, tracked := rebuilt.Enrollments[key]; !tracked && len(rebuilt.Enrollments) >= a.maxKeys {
				delete(deltas, path)
				deltas[fieldEnrollments+"."+OverflowKey] = 1
			}
		}
		rebuilt.apply(deltas)
		if ev.Timestamp.After(rebuilt.LastUpdated) {
			rebuilt.LastUpdated = ev.Timestamp
		}
	}

	if rebuilt.LastUpdated.IsZero() {
		rebuilt.LastUpdated = store.Now(a.store)
	}
	if err := a.store.Merge(ctx, RebuiltCollection, date, rebuilt.document()); err != nil {
		return nil, false, fmt.Errorf("failed to store rebuilt rollup: %w", err)
	}

	truncated := maxEvents > 0 && len(docs) >= maxEvents
	a.logger.Info("Daily rollup rebuilt",
		zap.String("date", date),
		zap.Int("events", len(docs)),
		zap.Bool("truncated", truncated),
		zap.Time("last_event", rebuilt.LastUpdated),
	)

	return rebuilt, truncated, nil
}
