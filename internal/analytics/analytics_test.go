package analytics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pinned = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	clock     *clock
	store     *store.MemoryStore
	events    *event.Service
	analytics *Service
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()

	c := &clock{now: pinned}
	s := store.NewMemoryStore().WithClock(c.Now)
	logger := zap.NewNop()

	agg := rollup.NewAggregator(s, time.UTC, 50, logger)
	source := NewDocumentSource(s, logger)
	resolver := timerange.NewResolver(c.Now, time.UTC)

	return &fixture{
		clock:     c,
		store:     s,
		events:    event.NewService(s, agg, time.UTC, logger),
		analytics: NewService(s, rollup.NewReader(s, logger), source, source, resolver, limits, logger),
	}
}

// trackAt records an event as if it arrived at ts, then restores the clock.
func (f *fixture) trackAt(t *testing.T, ts time.Time, eventType string, data map[string]any) {
	t.Helper()
	f.clock.Set(ts)
	defer f.clock.Set(pinned)

	_, err := f.events.Track(context.Background(), eventType, data)
	require.NoError(t, err)
}

func (f *fixture) addProfile(t *testing.T, id string, level int, lastLogin, createdAt time.Time) {
	t.Helper()
	err := f.store.Create(context.Background(), ProfileCollection, id, store.Document{
		"userId":        id,
		"level":         level,
		"totalXP":       int64(level * 100),
		"lastLoginDate": lastLogin,
		"createdAt":     createdAt,
	})
	require.NoError(t, err)
}

func (f *fixture) addAttempt(t *testing.T, id, quizID string, score any, completedAt time.Time) {
	t.Helper()
	doc := store.Document{
		"quizId":      quizID,
		"userId":      "u1",
		"completedAt": completedAt,
	}
	if score != nil {
		doc["score"] = score
	}
	require.NoError(t, f.store.Create(context.Background(), AttemptCollection, id, doc))
}

func TestUserAnalyticsRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("no profiles", func(t *testing.T) {
		f := newFixture(t, DefaultLimits())

		users, err := f.analytics.GetUserAnalytics(ctx, timerange.Last30Days)
		require.NoError(t, err)
		assert.Equal(t, 0, users.TotalUsers)
		assert.Equal(t, 0.0, users.RetentionRate)
		assert.Equal(t, 0.0, users.AverageLevel)
	})

	t.Run("every user active", func(t *testing.T) {
		f := newFixture(t, DefaultLimits())
		old := pinned.AddDate(-1, 0, 0)
		f.addProfile(t, "u1", 2, pinned.Add(-time.Hour), old)
		f.addProfile(t, "u2", 3, pinned.AddDate(0, 0, -3), pinned.AddDate(0, 0, -2))

		users, err := f.analytics.GetUserAnalytics(ctx, timerange.Last30Days)
		require.NoError(t, err)
		assert.Equal(t, 2, users.TotalUsers)
		assert.Equal(t, 2, users.ActiveUsers)
		assert.Equal(t, 1, users.NewUsers)
		assert.Equal(t, 100.0, users.RetentionRate)
		assert.Equal(t, 2.5, users.AverageLevel)
		assert.Equal(t, int64(500), users.TotalXP)
		assert.Equal(t, map[string]int{"2": 1, "3": 1}, users.LevelDistribution)
	})

	t.Run("inactive users lower retention", func(t *testing.T) {
		f := newFixture(t, DefaultLimits())
		old := pinned.AddDate(-1, 0, 0)
		f.addProfile(t, "u1", 1, pinned, old)
		f.addProfile(t, "u2", 1, old, old)
		f.addProfile(t, "u3", 1, old, old)
		f.addProfile(t, "u4", 1, old, old)

		users, err := f.analytics.GetUserAnalytics(ctx, timerange.Today)
		require.NoError(t, err)
		assert.Equal(t, 1, users.ActiveUsers)
		assert.Equal(t, 25.0, users.RetentionRate)
	})
}

func TestUserAnalyticsTruncatesAtProfileCap(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxProfiles = 2
	f := newFixture(t, limits)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.addProfile(t, id, 1, pinned, pinned)
	}

	users, err := f.analytics.GetUserAnalytics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.Equal(t, 2, users.TotalUsers)
	assert.True(t, users.Truncated)
}

func TestCourseMetricsFromTrackedEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultLimits())

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.trackAt(t, pinned.AddDate(0, 0, -i), event.EventTypeCourseEnrollment, map[string]any{
			"courseId":  "X",
			"userEmail": email,
		})
	}
	f.trackAt(t, pinned, event.EventTypeQuizComplete, map[string]any{
		"courseId": "X",
		"quizId":   "q1",
		"score":    80,
	})
	f.trackAt(t, pinned, event.EventTypeQuizComplete, map[string]any{
		"courseId": "X",
		"quizId":   "q1",
		"score":    91,
	})
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "Y"})

	courses, err := f.analytics.GetCourseMetrics(ctx, timerange.Last30Days)
	require.NoError(t, err)

	require.Contains(t, courses.CoursePerformance, "X")
	x := courses.CoursePerformance["X"]
	assert.Equal(t, 3, x.Enrollments)
	assert.Equal(t, 0, x.Completions)
	assert.Equal(t, 2, x.QuizAttempts)
	assert.Equal(t, 85.5, x.AverageScore)
	assert.Equal(t, 0.0, x.CompletionRate)

	assert.Equal(t, 2, courses.TotalCourses)
	require.Len(t, courses.TopCourses, 2)
	assert.Equal(t, "X", courses.TopCourses[0].CourseID)
	assert.Equal(t, "Y", courses.TopCourses[1].CourseID)
	assert.False(t, courses.Truncated)
}

func TestCourseCompletionRate(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})
	f.trackAt(t, pinned, event.EventTypeCourseCompletion, map[string]any{"courseId": "X"})
	// A completion without enrollments must not divide by zero.
	f.trackAt(t, pinned, event.EventTypeCourseCompletion, map[string]any{"courseId": "Z"})

	courses, err := f.analytics.GetCourseMetrics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.Equal(t, 33.33, courses.CoursePerformance["X"].CompletionRate)
	assert.Equal(t, 0.0, courses.CoursePerformance["Z"].CompletionRate)
}

func TestTopCoursesTieBreakIsStable(t *testing.T) {
	limits := DefaultLimits()
	limits.TopN = 2
	f := newFixture(t, limits)
	for _, id := range []string{"c", "a", "b"} {
		f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": id})
	}

	for i := 0; i < 3; i++ {
		courses, err := f.analytics.GetCourseMetrics(context.Background(), timerange.Today)
		require.NoError(t, err)
		require.Len(t, courses.TopCourses, 2)
		assert.Equal(t, "a", courses.TopCourses[0].CourseID)
		assert.Equal(t, "b", courses.TopCourses[1].CourseID)
	}
}

func TestQuizMetrics(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.addAttempt(t, "a1", "q1", 97, pinned)
	f.addAttempt(t, "a2", "q1", 100, pinned)
	f.addAttempt(t, "a3", "q2", 40.5, pinned.AddDate(0, 0, -1))
	f.addAttempt(t, "a4", "q2", nil, pinned)
	// Completed before the period and ignored.
	f.addAttempt(t, "a5", "q3", 10, pinned.AddDate(0, 0, -60))

	quizzes, err := f.analytics.GetQuizMetrics(context.Background(), timerange.Last7Days)
	require.NoError(t, err)

	assert.Equal(t, 3, quizzes.TotalAttempts)
	assert.Equal(t, 1, quizzes.PerfectScores)
	assert.Equal(t, map[string]int{"90": 2, "40": 1}, quizzes.ScoreDistribution)
	assert.Equal(t, 79.17, quizzes.AverageScore)

	q1 := quizzes.QuizPerformance["q1"]
	require.NotNil(t, q1)
	assert.Equal(t, 2, q1.Attempts)
	assert.Equal(t, 98.5, q1.AverageScore)
	assert.Equal(t, 50.0, q1.PerfectScoreRate)

	require.Len(t, quizzes.TopPerformingQuizzes, 2)
	assert.Equal(t, "q1", quizzes.TopPerformingQuizzes[0].QuizID)
	assert.NotContains(t, quizzes.QuizPerformance, "q3")
}

func TestQuizMetricsReadsStringCompletedAt(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	require.NoError(t, f.store.Create(context.Background(), AttemptCollection, "a1", store.Document{
		"quizId":      "q1",
		"userId":      "u1",
		"score":       97,
		"completedAt": pinned.Format(time.RFC3339),
	}))
	require.NoError(t, f.store.Create(context.Background(), AttemptCollection, "a2", store.Document{
		"quizId":      "q1",
		"userId":      "u2",
		"score":       50,
		"completedAt": pinned.AddDate(0, 0, -60).Format(time.RFC3339),
	}))

	quizzes, err := f.analytics.GetQuizMetrics(context.Background(), timerange.Last7Days)
	require.NoError(t, err)
	assert.Equal(t, 1, quizzes.TotalAttempts)
	assert.Equal(t, map[string]int{"90": 1}, quizzes.ScoreDistribution)
}

func TestEngagementMetrics(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	f.trackAt(t, day, event.EventTypeLogin, map[string]any{"userEmail": "a@example.com"})
	f.trackAt(t, day.Add(30*time.Minute), event.EventTypeLessonStart, map[string]any{"userEmail": "a@example.com"})
	f.trackAt(t, day.Add(3*time.Hour), event.EventTypeLessonStart, map[string]any{"userEmail": "b@example.com"})
	f.trackAt(t, pinned, event.EventTypeLogin, map[string]any{"userId": "u-no-email"})

	engagement, err := f.analytics.GetEngagementMetrics(context.Background(), timerange.Last7Days)
	require.NoError(t, err)

	assert.Equal(t, 4, engagement.TotalEvents)
	assert.Equal(t, map[string]int{event.EventTypeLogin: 2, event.EventTypeLessonStart: 2}, engagement.EventsByType)
	assert.Equal(t, map[string]int{"2026-03-14": 3, "2026-03-15": 1}, engagement.EventsByDay)
	assert.Equal(t, 2, engagement.EventsByHour[9])
	assert.Equal(t, 9, engagement.MostActiveHour)
	assert.Equal(t, "2026-03-14", engagement.PeakDay)

	// Sessions are keyed by email, so the userId-only event is not counted.
	assert.Equal(t, 2, engagement.UniqueUsers)
	assert.Equal(t, 3, engagement.TotalSessions)
	assert.Equal(t, 30.0, engagement.TotalSessionTime)
	assert.Equal(t, 10.0, engagement.AverageSessionTime)
}

func TestEngagementTieBreaks(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.trackAt(t, time.Date(2026, 3, 13, 15, 0, 0, 0, time.UTC), event.EventTypeLogin, nil)
	f.trackAt(t, time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC), event.EventTypeLogin, nil)

	engagement, err := f.analytics.GetEngagementMetrics(context.Background(), timerange.Last7Days)
	require.NoError(t, err)
	assert.Equal(t, 8, engagement.MostActiveHour)
	assert.Equal(t, "2026-03-12", engagement.PeakDay)
}

func TestEngagementEmptyRange(t *testing.T) {
	f := newFixture(t, DefaultLimits())

	engagement, err := f.analytics.GetEngagementMetrics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.Equal(t, 0, engagement.TotalEvents)
	assert.Equal(t, 0.0, engagement.AverageSessionTime)
	assert.Equal(t, 0, engagement.MostActiveHour)
	assert.Equal(t, "", engagement.PeakDay)
	assert.Equal(t, Percentiles{}, engagement.SessionTimePercentiles)
}

func TestEventScanTruncatesAtCap(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxEvents = 3
	f := newFixture(t, limits)
	for i := 0; i < 5; i++ {
		f.trackAt(t, pinned.Add(-time.Duration(i)*time.Minute), event.EventTypeLessonStart, map[string]any{"courseId": "X"})
	}

	engagement, err := f.analytics.GetEngagementMetrics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.Equal(t, 3, engagement.TotalEvents)
	assert.True(t, engagement.Truncated)

	courses, err := f.analytics.GetCourseMetrics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.True(t, courses.Truncated)
}

func TestSessionEstimators(t *testing.T) {
	base := pinned
	timestamps := []time.Time{
		base,
		base.Add(10 * time.Minute),
		base.Add(2 * time.Hour),
		base.Add(2*time.Hour + 5*time.Minute),
	}

	firstLast := FirstLastEstimator{}.Estimate(timestamps)
	assert.Equal(t, 4, firstLast.Sessions)
	assert.Equal(t, 125.0, firstLast.Minutes)

	idle := IdleGapEstimator{Gap: 30 * time.Minute}.Estimate(timestamps)
	assert.Equal(t, 2, idle.Sessions)
	assert.Equal(t, 15.0, idle.Minutes)

	assert.Equal(t, SessionEstimate{Sessions: 1}, FirstLastEstimator{}.Estimate(timestamps[:1]))
	assert.Equal(t, SessionEstimate{}, IdleGapEstimator{Gap: time.Minute}.Estimate(nil))

	assert.IsType(t, IdleGapEstimator{}, NewSessionEstimator("idle_gap", time.Minute))
	assert.IsType(t, FirstLastEstimator{}, NewSessionEstimator("idle_gap", 0))
	assert.IsType(t, FirstLastEstimator{}, NewSessionEstimator("", time.Minute))
}

func TestEngagementWithIdleGapEstimator(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.analytics.WithEstimator(IdleGapEstimator{Gap: 30 * time.Minute})
	day := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 20 * time.Minute, 3 * time.Hour} {
		f.trackAt(t, day.Add(offset), event.EventTypeLessonStart, map[string]any{"userEmail": "a@example.com"})
	}

	engagement, err := f.analytics.GetEngagementMetrics(context.Background(), timerange.Today)
	require.NoError(t, err)
	assert.Equal(t, 2, engagement.TotalSessions)
	assert.Equal(t, 20.0, engagement.TotalSessionTime)
	assert.Equal(t, 10.0, engagement.AverageSessionTime)
}

func TestSessionPercentiles(t *testing.T) {
	h := newSessionHistogram()
	for i := 1; i <= 100; i++ {
		h.record(float64(i))
	}

	p := h.percentiles()
	assert.InDelta(t, 50, p.P50, 0.1)
	assert.InDelta(t, 90, p.P90, 0.1)
	assert.InDelta(t, 99, p.P99, 0.1)
}

func TestSessionHistogramClampsOutOfRangeValues(t *testing.T) {
	h := newSessionHistogram()
	h.record(-5)
	h.record(0)
	h.record(10 * 365 * 24 * 60)

	assert.Equal(t, int64(3), h.hist.TotalCount())
	assert.Equal(t, int64(2), h.hist.CountAtValue(0))
	assert.True(t, h.hist.ValueAtQuantile(100) >= maxTrackedSeconds)
}

func TestLearningPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultLimits())
	user := map[string]any{"userEmail": "ada@example.com", "courseId": "go-101"}

	f.trackAt(t, pinned.AddDate(0, 0, -5), event.EventTypeCourseEnrollment, user)
	f.trackAt(t, pinned.AddDate(0, 0, -2), event.EventTypeLessonStart, user)
	f.trackAt(t, pinned.AddDate(0, 0, -1), event.EventTypeLessonStart, user)
	f.trackAt(t, pinned, event.EventTypeQuizComplete, map[string]any{
		"userEmail": "ada@example.com",
		"courseId":  "go-201",
		"score":     70,
	})
	f.trackAt(t, pinned, event.EventTypeLogin, map[string]any{"userEmail": "someone@example.com"})

	path, err := f.analytics.GetLearningPath(ctx, " ada@example.com ")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", path.User)
	assert.Equal(t, 4, path.TotalEvents)
	assert.Equal(t, 4, path.ActiveDays)
	assert.Equal(t, 3, path.CurrentStreak)
	assert.Equal(t, 3, path.LongestStreak)
	assert.Equal(t, []string{"go-101", "go-201"}, path.CoursesTouched)
	assert.Equal(t, map[string]int{
		event.EventTypeCourseEnrollment: 1,
		event.EventTypeLessonStart:       2,
		event.EventTypeQuizComplete:     1,
	}, path.EventsByType)

	require.Len(t, path.Events, 4)
	assert.Equal(t, event.EventTypeCourseEnrollment, path.Events[0].EventType)
	assert.Equal(t, event.EventTypeQuizComplete, path.Events[3].EventType)
	require.NotNil(t, path.FirstActivity)
	assert.True(t, path.FirstActivity.Equal(pinned.AddDate(0, 0, -5)))
	assert.True(t, path.LastActivity.Equal(pinned))
}

func TestLearningPathFallsBackToUserID(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.trackAt(t, pinned, event.EventTypeLogin, map[string]any{"userId": "u-42"})

	path, err := f.analytics.GetLearningPath(context.Background(), "u-42")
	require.NoError(t, err)
	assert.Equal(t, 1, path.TotalEvents)
	assert.Equal(t, 1, path.CurrentStreak)
}

func TestLearningPathMatchesTopLevelActor(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	require.NoError(t, f.store.Create(context.Background(), event.Collection, "01EVENT", store.Document{
		"eventType": event.EventTypeLogin,
		"eventData": map[string]any{},
		"userEmail": "ada@example.com",
		"timestamp": pinned,
		"date":      "2026-03-15",
	}))

	path, err := f.analytics.GetLearningPath(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, path.TotalEvents)
	assert.Equal(t, 1, path.CurrentStreak)
}

func TestLearningPathUnknownAndEmptyUser(t *testing.T) {
	f := newFixture(t, DefaultLimits())

	path, err := f.analytics.GetLearningPath(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, path.TotalEvents)
	assert.Equal(t, 0, path.CurrentStreak)
	assert.Nil(t, path.FirstActivity)
	assert.NotNil(t, path.Events)

	_, err = f.analytics.GetLearningPath(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyUser)
}

func TestStreaks(t *testing.T) {
	tests := []struct {
		name    string
		dates   []string
		today   string
		current int
		longest int
	}{
		{
			name:    "no activity",
			today:   "2026-03-15",
			current: 0,
			longest: 0,
		},
		{
			name:    "gap breaks the current streak",
			dates:   []string{"2026-03-15", "2026-03-14", "2026-03-13", "2026-03-11"},
			today:   "2026-03-15",
			current: 3,
			longest: 3,
		},
		{
			name:    "inactive today",
			dates:   []string{"2026-03-14", "2026-03-13"},
			today:   "2026-03-15",
			current: 0,
			longest: 2,
		},
		{
			name:    "duplicates count once",
			dates:   []string{"2026-03-15", "2026-03-15", "2026-03-14"},
			today:   "2026-03-15",
			current: 2,
			longest: 2,
		},
		{
			name:    "longest run in the past",
			dates:   []string{"2026-03-15", "2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"},
			today:   "2026-03-15",
			current: 1,
			longest: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.current, CurrentStreak(tt.dates, tt.today))
			assert.Equal(t, tt.longest, LongestStreak(tt.dates))
		})
	}
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultLimits())
	f.addProfile(t, "u1", 1, pinned, pinned.AddDate(-1, 0, 0))

	f.trackAt(t, pinned.AddDate(0, 0, -1), event.EventTypeCourseEnrollment, map[string]any{"courseId": "X", "userEmail": "a@example.com"})
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "X", "userEmail": "b@example.com"})
	f.trackAt(t, pinned, event.EventTypeQuizComplete, map[string]any{"courseId": "X", "score": 88})
	f.trackAt(t, pinned, event.EventTypeLogin, map[string]any{"userEmail": "a@example.com"})
	f.trackAt(t, pinned, event.EventTypeAchievementUnlock, map[string]any{"userEmail": "a@example.com"})
	// Outside last_7_days.
	f.trackAt(t, pinned.AddDate(0, 0, -20), event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})

	overview, err := f.analytics.GetOverview(ctx, timerange.Last7Days)
	require.NoError(t, err)

	assert.Equal(t, timerange.Last7Days, overview.Period)
	assert.Equal(t, timerange.Range{Start: "2026-03-08", End: "2026-03-15"}, overview.Range)
	assert.Equal(t, pinned, overview.GeneratedAt)

	totals := overview.Overview
	assert.Equal(t, 1, totals.TotalUsers)
	assert.Equal(t, 1, totals.ActiveUsers)
	assert.Equal(t, 100.0, totals.RetentionRate)
	assert.Equal(t, int64(5), totals.TotalEvents)
	assert.Equal(t, int64(2), totals.TotalEnrollments)
	assert.Equal(t, int64(1), totals.QuizCompletions)
	assert.Equal(t, int64(1), totals.UniqueLogins)
	assert.Equal(t, int64(1), totals.AchievementsUnlocked)

	require.Len(t, overview.DailyData, 2)
	assert.Equal(t, "2026-03-14", overview.DailyData[0].Date)
	assert.Equal(t, "2026-03-15", overview.DailyData[1].Date)
	assert.Equal(t, 5, overview.Engagement.TotalEvents)
	assert.Equal(t, 2, overview.Courses.CoursePerformance["X"].Enrollments)
}

type failingRollups struct{}

func (failingRollups) Range(context.Context, timerange.Range) ([]rollup.DailyRollup, error) {
	return nil, store.ErrUnavailable
}

func TestOverviewFailsWhenASectionFails(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.analytics.rollups = failingRollups{}

	_, err := f.analytics.GetOverview(context.Background(), timerange.Today)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	_, err = f.analytics.Export(context.Background(), timerange.Today, FormatCSV)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestExportJSONMatchesOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultLimits())
	for i := 0; i < 3; i++ {
		f.trackAt(t, pinned.AddDate(0, 0, -i), event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})
	}
	f.addAttempt(t, "a1", "q1", 100, pinned)

	overview, err := f.analytics.GetOverview(ctx, timerange.Last30Days)
	require.NoError(t, err)

	export, err := f.analytics.Export(ctx, timerange.Last30Days, "JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, export.Format)
	assert.Equal(t, "application/json", export.ContentType)
	assert.Equal(t, "analytics-last_30_days-2026-03-15.json", export.Filename)

	var decoded struct {
		Period   string         `json:"period"`
		Overview OverviewTotals `json:"overview"`
		Users    *UserAnalytics `json:"users"`
		Quizzes  *QuizMetrics   `json:"quizzes"`
	}
	require.NoError(t, json.Unmarshal(export.Data, &decoded))
	assert.Equal(t, timerange.Last30Days, decoded.Period)
	assert.Equal(t, overview.Overview.TotalEnrollments, decoded.Overview.TotalEnrollments)
	assert.Equal(t, int64(3), decoded.Overview.TotalEnrollments)
	require.NotNil(t, decoded.Users)
	require.NotNil(t, decoded.Quizzes)
	assert.Equal(t, 1, decoded.Quizzes.PerfectScores)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, DefaultLimits())
	f.trackAt(t, pinned, event.EventTypeCourseEnrollment, map[string]any{"courseId": "X"})

	export, err := f.analytics.Export(context.Background(), timerange.Today, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", export.ContentType)
	assert.Equal(t, "analytics-today-2026-03-15.csv", export.Filename)

	rows, err := csv.NewReader(strings.NewReader(string(export.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Equal(t, []string{"Total Events", "1"}, rows[5])
	assert.Equal(t, []string{"Total Enrollments", "1"}, rows[6])
	assert.Equal(t, []string{"Quiz Completions", "0"}, rows[7])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t, DefaultLimits())

	_, err := f.analytics.Export(context.Background(), timerange.Today, "xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
