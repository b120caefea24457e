package analytics

import (
	"context"
	"fmt"

	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// GetOverview composes the dashboard: coarse totals from the daily rollups,
// then the user, engagement and course sections over the same range. Any
// failing section fails the whole call.
func (s *Service) GetOverview(ctx context.Context, period string) (*Overview, error) {
	defer observe(s.metrics, "overview")()

	rg := s.resolver.Resolve(period)
	overview, _, _, err := s.compose(ctx, period, rg, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Overview computed",
		zap.String("period", period),
		zap.String("start", rg.Start),
		zap.String("end", rg.End),
		zap.Int64("total_events", overview.Overview.TotalEvents),
	)

	return overview, nil
}

// compose builds the overview and, when withQuizzes is set, the quiz section
// used by the JSON export.
func (s *Service) compose(ctx context.Context, period string, rg timerange.Range, withQuizzes bool) (*Overview, *UserAnalytics, *QuizMetrics, error) {
	daily, err := s.rollups.Range(ctx, rg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read daily rollups: %w", err)
	}
	totals := rollup.Sum(daily)

	users, err := s.userAnalytics(ctx, rg)
	if err != nil {
		return nil, nil, nil, err
	}

	events, truncated, err := s.scanEvents(ctx, rg)
	if err != nil {
		return nil, nil, nil, err
	}
	engagement := s.engagement(events, truncated)
	courses := s.courses(events, truncated)

	var quizzes *QuizMetrics
	if withQuizzes {
		quizzes, err = s.quizzes(ctx, rg)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	overview := &Overview{
		Period:      period,
		Range:       rg,
		GeneratedAt: store.Now(s.store),
		Overview: OverviewTotals{
			TotalUsers:           users.TotalUsers,
			ActiveUsers:          users.ActiveUsers,
			NewUsers:             users.NewUsers,
			RetentionRate:        users.RetentionRate,
			TotalEvents:          totals.TotalEvents(),
			TotalEnrollments:     totals.TotalEnrollments,
			QuizCompletions:      totals.QuizCompletions,
			UniqueLogins:         totals.UniqueLogins,
			AchievementsUnlocked: totals.AchievementsUnlocked,
			AverageSessionTime:   engagement.AverageSessionTime,
		},
		DailyData:  daily,
		Engagement: engagement,
		Courses:    courses,
	}

	return overview, users, quizzes, nil
}
