// Package lms reads gamification profiles and quiz attempts from the LMS's
// relational database.
package lms

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/analytics"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	profilesQuery = `
		SELECT user_id, email, level, total_xp, last_login_date, created_at
		FROM user_gamification
		ORDER BY user_id
		LIMIT ?
	`

	attemptsQuery = `
		SELECT id, quiz_id, user_id, score, completed_at
		FROM quiz_attempts
		WHERE completed_at >= ?
		  AND score IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT ?
	`
)

type profileRow struct {
	UserID        string         `db:"user_id"`
	Email         sql.NullString `db:"email"`
	Level         int            `db:"level"`
	TotalXP       int64          `db:"total_xp"`
	LastLoginDate sql.NullTime   `db:"last_login_date"`
	CreatedAt     sql.NullTime   `db:"created_at"`
}

func (r profileRow) toProfile() analytics.Profile {
	p := analytics.Profile{
		UserID:  r.UserID,
		Email:   r.Email.String,
		Level:   r.Level,
		TotalXP: r.TotalXP,
	}
	if r.LastLoginDate.Valid {
		p.LastLoginDate = r.LastLoginDate.Time
	}
	if r.CreatedAt.Valid {
		p.CreatedAt = r.CreatedAt.Time
	}
	return p
}

type attemptRow struct {
	ID          string          `db:"id"`
	QuizID      string          `db:"quiz_id"`
	UserID      string          `db:"user_id"`
	Score       sql.NullFloat64 `db:"score"`
	CompletedAt time.Time       `db:"completed_at"`
}

type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository returns a reader over the user_gamification and quiz_attempts
// tables. It implements analytics.ProfileReader and analytics.AttemptReader.
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ListProfiles(ctx context.Context, limit int) ([]analytics.Profile, error) {
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(profilesQuery), limit); err != nil {
		r.logger.Error("Failed to list profiles", zap.Error(err))
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	profiles := make([]analytics.Profile, len(rows))
	for i, row := range rows {
		profiles[i] = row.toProfile()
	}
	return profiles, nil
}

func (r *Repository) ListAttempts(ctx context.Context, since time.Time, limit int) ([]analytics.QuizAttempt, error) {
	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(attemptsQuery), since, limit); err != nil {
		r.logger.Error("Failed to list quiz attempts",
			zap.Time("since", since),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}

	attempts := make([]analytics.QuizAttempt, 0, len(rows))
	for _, row := range rows {
		if !row.Score.Valid {
			continue
		}
		attempts = append(attempts, analytics.QuizAttempt{
			ID:          row.ID,
			QuizID:      row.QuizID,
			UserID:      row.UserID,
			Score:       row.Score.Float64,
			CompletedAt: row.CompletedAt,
		})
	}
	return attempts, nil
}

var (
	_ analytics.ProfileReader = (*Repository)(nil)
	_ analytics.AttemptReader = (*Repository)(nil)
)
