package analytics

import (
	"context"
	"math"
	"strconv"

	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// GetUserAnalytics classifies the scanned profiles against the period: a user
// is active when they logged in on or after its first day and new when the
// profile was created on or after it.
func (s *Service) GetUserAnalytics(ctx context.Context, period string) (*UserAnalytics, error) {
	defer observe(s.metrics, "users")()
	return s.userAnalytics(ctx, s.resolver.Resolve(period))
}

func (s *Service) userAnalytics(ctx context.Context, rg timerange.Range) (*UserAnalytics, error) {
	profiles, err := s.profiles.ListProfiles(ctx, s.limits.MaxProfiles)
	if err != nil {
		return nil, err
	}

	start := rg.StartTime(s.resolver.Location())
	result := &UserAnalytics{
		TotalUsers:        len(profiles),
		LevelDistribution: make(map[string]int),
		Truncated:         s.limits.MaxProfiles > 0 && len(profiles) >= s.limits.MaxProfiles,
	}

	var levelSum int
	for _, p := range profiles {
		if !p.LastLoginDate.IsZero() && !p.LastLoginDate.Before(start) {
			result.ActiveUsers++
		}
		if !p.CreatedAt.IsZero() && !p.CreatedAt.Before(start) {
			result.NewUsers++
		}
		levelSum += p.Level
		result.TotalXP += p.TotalXP
		result.LevelDistribution[strconv.Itoa(p.Level)]++
	}

	if result.TotalUsers > 0 {
		result.AverageLevel = math.Round(float64(levelSum)/float64(result.TotalUsers)*10) / 10
	}
	result.RetentionRate = percent(result.ActiveUsers, result.TotalUsers)

	s.logger.Debug("User analytics computed",
		zap.String("start", rg.Start),
		zap.Int("total_users", result.TotalUsers),
		zap.Int("active_users", result.ActiveUsers),
		zap.Bool("truncated", result.Truncated),
	)

	return result, nil
}
