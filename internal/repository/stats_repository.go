package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exprep-backend/internal/model"
)

// StatsRepository reads the per-user aggregates kept by the stats worker.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Get returns a user's aggregate row.
func (r *StatsRepository) Get(ctx context.Context, userID int64) (*model.UserStats, error) {
	s := &model.UserStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, total_attempts, total_score, best_score, total_questions, total_time_spent,
		        bucket_0_25, bucket_25_50, bucket_50_75, bucket_75_100, updated_at
		 FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.TotalAttempts, &s.TotalScore, &s.BestScore, &s.TotalQuestions, &s.TotalTimeSpent,
		&s.Bucket0To25, &s.Bucket25To50, &s.Bucket50To75, &s.Bucket75To100, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild recomputes a user's aggregate from their completed attempts.
func (r *StatsRepository) Rebuild(ctx context.Context, userID int64) error {
	return r.RebuildMany(ctx, []int64{userID})
}

// RebuildMany recomputes the aggregates of several users in one transaction.
// Users left without completed attempts lose their row.
func (r *StatsRepository) RebuildMany(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM user_stats s
		 WHERE s.user_id = ANY($1::bigint[])
		   AND NOT EXISTS (SELECT 1 FROM attempts a WHERE a.user_id = s.user_id AND a.status = 'completed')`,
		userIDs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_stats (user_id, total_attempts, total_score, best_score, total_questions,
		                         total_time_spent, bucket_0_25, bucket_25_50, bucket_50_75, bucket_75_100, updated_at)
		 SELECT user_id, COUNT(*), COALESCE(SUM(score), 0), COALESCE(MAX(score), 0),
		        COALESCE(SUM(total_questions), 0), COALESCE(SUM(time_spent), 0),
		        COUNT(*) FILTER (WHERE score < 25),
		        COUNT(*) FILTER (WHERE score >= 25 AND score < 50),
		        COUNT(*) FILTER (WHERE score >= 50 AND score < 75),
		        COUNT(*) FILTER (WHERE score >= 75),
		        CURRENT_TIMESTAMP
		 FROM attempts
		 WHERE user_id = ANY($1::bigint[]) AND status = 'completed'
		 GROUP BY user_id
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_attempts = EXCLUDED.total_attempts,
		   total_score = EXCLUDED.total_score,
		   best_score = EXCLUDED.best_score,
		   total_questions = EXCLUDED.total_questions,
		   total_time_spent = EXCLUDED.total_time_spent,
		   bucket_0_25 = EXCLUDED.bucket_0_25,
		   bucket_25_50 = EXCLUDED.bucket_25_50,
		   bucket_50_75 = EXCLUDED.bucket_50_75,
		   bucket_75_100 = EXCLUDED.bucket_75_100,
		   updated_at = EXCLUDED.updated_at`,
		userIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
