package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// GetLearningPath returns a user's most recent events in chronological order
// together with their current activity streak. The user is matched by email
// first and by user id when no event carries that email.
func (s *Service) GetLearningPath(ctx context.Context, user string) (*LearningPath, error) {
	defer observe(s.metrics, "learning_path")()

	user = strings.TrimSpace(user)
	if user == "" {
		return nil, ErrEmptyUser
	}

	docs, err := s.userEvents(ctx, event.FieldUserEmail, user)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		docs, err = s.userEvents(ctx, event.FieldUserID, user)
		if err != nil {
			return nil, err
		}
	}

	path := &LearningPath{
		User:           user,
		EventsByType:   make(map[string]int),
		CoursesTouched: make([]string, 0),
		Events:         make([]PathEvent, 0, len(docs)),
		Truncated:      s.limits.MaxPathEvents > 0 && len(docs) >= s.limits.MaxPathEvents,
	}

	dates := make([]string, 0, len(docs))
	courses := make(map[string]struct{})
	// docs are newest first; the trace is chronological.
	for i := len(docs) - 1; i >= 0; i-- {
		ev := event.FromDocument(docs[i])
		path.Events = append(path.Events, PathEvent{
			ID:        ev.ID,
			EventType: ev.EventType,
			Date:      ev.Date,
			Timestamp: ev.Timestamp,
			EventData: ev.EventData,
		})
		path.EventsByType[ev.EventType]++
		if ev.Date != "" {
			dates = append(dates, ev.Date)
		}
		if id := ev.CourseID(); id != "" {
			courses[id] = struct{}{}
		}
	}

	path.TotalEvents = len(path.Events)
	if path.TotalEvents > 0 {
		first := path.Events[0].Timestamp
		last := path.Events[path.TotalEvents-1].Timestamp
		path.FirstActivity = &first
		path.LastActivity = &last
	}
	path.CoursesTouched = append(path.CoursesTouched, sortedKeys(courses)...)
	path.ActiveDays = len(uniqueDates(dates))
	path.CurrentStreak = CurrentStreak(dates, s.resolver.Today())
	path.LongestStreak = LongestStreak(dates)

	s.logger.Debug("Learning path computed",
		zap.Int("events", path.TotalEvents),
		zap.Int("streak", path.CurrentStreak),
	)

	return path, nil
}

func (s *Service) userEvents(ctx context.Context, field, value string) ([]store.Document, error) {
	q := store.Where(field, store.OpEqual, value).
		Order("timestamp", true).
		Take(s.limits.MaxPathEvents)

	docs, err := s.store.Query(ctx, event.Collection, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query user events: %w", err)
	}
	return docs, nil
}

// CurrentStreak counts consecutive active days walking back from today. The
// first day without activity ends the count, so a user who has not been
// active today has a streak of 0. Dates after today are ignored.
func CurrentStreak(dates []string, today string) int {
	active := uniqueDates(dates)

	day, err := time.Parse(timerange.DateLayout, today)
	if err != nil {
		return 0
	}

	streak := 0
	for {
		if _, ok := active[day.Format(timerange.DateLayout)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

func uniqueDates(dates []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// LongestStreak is the longest run of consecutive active days anywhere in
// the history.
func LongestStreak(dates []string) int {
	set := uniqueDates(dates)
	days := sortedKeys(set)

	longest, run := 0, 0
	var prev time.Time
	for _, d := range days {
		t, err := time.Parse(timerange.DateLayout, d)
		if err != nil {
			continue
		}
		if run > 0 && t.Equal(prev.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = t
	}
	return longest
}
