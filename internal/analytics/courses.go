package analytics

import (
	"context"
	"sort"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// GetCourseMetrics rolls up every event of the period that names a course.
func (s *Service) GetCourseMetrics(ctx context.Context, period string) (*CourseMetrics, error) {
	defer observe(s.metrics, "courses")()

	rg := s.resolver.Resolve(period)
	events, truncated, err := s.scanEvents(ctx, rg)
	if err != nil {
		return nil, err
	}
	return s.courses(events, truncated), nil
}

func (s *Service) courses(events []*event.Event, truncated bool) *CourseMetrics {
	perCourse := make(map[string]*CourseStats)

	for _, ev := range events {
		courseID := ev.CourseID()
		if courseID == "" {
			continue
		}
		stats, ok := perCourse[courseID]
		if !ok {
			stats = &CourseStats{CourseID: courseID}
			perCourse[courseID] = stats
		}

		switch ev.EventType {
		case event.EventTypeCourseEnrollment:
			stats.Enrollments++
		case event.EventTypeCourseCompletion:
			stats.Completions++
		case event.EventTypeQuizComplete:
			stats.QuizAttempts++
		}
		if score, ok := ev.Score(); ok {
			stats.TotalScore += score
			stats.ScoreCount++
		}
	}

	for _, stats := range perCourse {
		if stats.ScoreCount > 0 {
			stats.AverageScore = round2(stats.TotalScore / float64(stats.ScoreCount))
		}
		stats.CompletionRate = round2(percent(stats.Completions, stats.Enrollments))
	}

	ranked := make([]CourseStats, 0, len(perCourse))
	for _, id := range sortedKeys(perCourse) {
		ranked = append(ranked, *perCourse[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Enrollments > ranked[j].Enrollments
	})

	result := &CourseMetrics{
		TotalCourses:      len(perCourse),
		CoursePerformance: perCourse,
		TopCourses:        top(ranked, s.limits.TopN),
		Truncated:         truncated,
	}

	s.logger.Debug("Course metrics computed",
		zap.Int("courses", result.TotalCourses),
		zap.Bool("truncated", truncated),
	)

	return result
}

// GetQuizMetrics aggregates the quiz attempts completed since the first day
// of the period.
func (s *Service) GetQuizMetrics(ctx context.Context, period string) (*QuizMetrics, error) {
	defer observe(s.metrics, "quizzes")()
	return s.quizzes(ctx, s.resolver.Resolve(period))
}

func (s *Service) quizzes(ctx context.Context, rg timerange.Range) (*QuizMetrics, error) {
	since := rg.StartTime(s.resolver.Location())
	attempts, err := s.attempts.ListAttempts(ctx, since, s.limits.MaxQuizAttempts)
	if err != nil {
		return nil, err
	}

	result := &QuizMetrics{
		ScoreDistribution: make(map[string]int),
		QuizPerformance:   make(map[string]*QuizStats),
		Truncated:         s.limits.MaxQuizAttempts > 0 && len(attempts) >= s.limits.MaxQuizAttempts,
	}

	var totalScore float64
	for _, a := range attempts {
		result.TotalAttempts++
		totalScore += a.Score
		result.ScoreDistribution[rollup.BucketKey(a.Score)]++

		stats, ok := result.QuizPerformance[a.QuizID]
		if !ok {
			stats = &QuizStats{QuizID: a.QuizID}
			result.QuizPerformance[a.QuizID] = stats
		}
		stats.Attempts++
		stats.TotalScore += a.Score

		if a.Score == 100 {
			result.PerfectScores++
			stats.PerfectScores++
		}
	}

	if result.TotalAttempts > 0 {
		result.AverageScore = round2(totalScore / float64(result.TotalAttempts))
	}
	for _, stats := range result.QuizPerformance {
		stats.AverageScore = round2(stats.TotalScore / float64(stats.Attempts))
		stats.PerfectScoreRate = round2(percent(stats.PerfectScores, stats.Attempts))
	}

	ranked := make([]QuizStats, 0, len(result.QuizPerformance))
	for _, id := range sortedKeys(result.QuizPerformance) {
		ranked = append(ranked, *result.QuizPerformance[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageScore > ranked[j].AverageScore
	})
	result.TopPerformingQuizzes = top(ranked, s.limits.TopN)

	s.logger.Debug("Quiz metrics computed",
		zap.Time("since", since),
		zap.Int("attempts", result.TotalAttempts),
		zap.Bool("truncated", result.Truncated),
	)

	return result, nil
}

func top[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
