package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"go.uber.org/zap"
)

// Collections owned by the LMS and read here when profiles live in the
// document store.
const (
	ProfileCollection = "userGamification"
	AttemptCollection = "quizAttempts"
)

type ProfileReader interface {
	// ListProfiles returns at most limit profiles.
	ListProfiles(ctx context.Context, limit int) ([]Profile, error)
}

type AttemptReader interface {
	// ListAttempts returns at most limit attempts completed at or after since.
	ListAttempts(ctx context.Context, since time.Time, limit int) ([]QuizAttempt, error)
}

type RollupReader interface {
	Range(ctx context.Context, rg timerange.Range) ([]rollup.DailyRollup, error)
}

type DocumentSource struct {
	store  store.Store
	logger *zap.Logger
}

// NewDocumentSource reads profiles and quiz attempts from the document store.
// The returned value implements both ProfileReader and AttemptReader.
func NewDocumentSource(s store.Store, logger *zap.Logger) *DocumentSource {
	return &DocumentSource{
		store:  s,
		logger: logger,
	}
}

func (d *DocumentSource) ListProfiles(ctx context.Context, limit int) ([]Profile, error) {
	docs, err := d.store.Query(ctx, ProfileCollection, store.Query{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(docs))
	for _, doc := range docs {
		lastLogin, _ := doc.Time("lastLoginDate")
		createdAt, _ := doc.Time("createdAt")
		id := doc.String("userId")
		if id == "" {
			id = doc.String(store.KeyField)
		}

		profiles = append(profiles, Profile{
			UserID:        id,
			Email:         doc.String("email"),
			Level:         int(doc.Int64("level")),
			TotalXP:       doc.Int64("totalXP"),
			LastLoginDate: lastLogin,
			CreatedAt:     createdAt,
		})
	}

	d.logger.Debug("Profiles read", zap.Int("count", len(profiles)))
	return profiles, nil
}

func (d *DocumentSource) ListAttempts(ctx context.Context, since time.Time, limit int) ([]QuizAttempt, error) {
	q := store.Where("completedAt", store.OpGreaterOrEqual, since).Take(limit)

	docs, err := d.store.Query(ctx, AttemptCollection, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}

	attempts := make([]QuizAttempt, 0, len(docs))
	for _, doc := range docs {
		score, ok := doc.Float64("score")
		if !ok {
			continue
		}
		completedAt, _ := doc.Time("completedAt")

		attempts = append(attempts, QuizAttempt{
			ID:          doc.String(store.KeyField),
			QuizID:      doc.String("quizId"),
			UserID:      doc.String("userId"),
			Score:       score,
			CompletedAt: completedAt,
		})
	}

	d.logger.Debug("Quiz attempts read",
		zap.Time("since", since),
		zap.Int("count", len(attempts)),
	)
	return attempts, nil
}
