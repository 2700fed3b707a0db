package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exprep-backend/internal/model"
)

const attemptColumns = `a.id, a.user_id, a.paper_id, a.mode, a.responses, a.question_ids, a.score,
	a.total_questions, a.time_spent, a.status, a.started_at, a.completed_at`

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func attemptDest(a *model.Attempt) []any {
	return []any{&a.ID, &a.UserID, &a.PaperID, &a.Mode, &a.Responses, &a.QuestionIDs, &a.Score,
		&a.TotalQuestions, &a.TimeSpent, &a.Status, &a.StartedAt, &a.CompletedAt}
}

// Create inserts a finished attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	if a.Responses == nil {
		a.Responses = map[int64]string{}
	}
	if a.QuestionIDs == nil {
		a.QuestionIDs = []int64{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, paper_id, mode, responses, question_ids, score,
		                       total_questions, time_spent, status, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, CURRENT_TIMESTAMP), $11)
		 RETURNING id, started_at`,
		a.UserID, a.PaperID, a.Mode, a.Responses, a.QuestionIDs, a.Score,
		a.TotalQuestions, a.TimeSpent, a.Status, nullTime(a.StartedAt), a.CompletedAt,
	).Scan(&a.ID, &a.StartedAt)
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts a WHERE a.id = $1`, id,
	).Scan(attemptDest(a)...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByUser returns a page of a user's attempts, newest first, with the
// paper and exam they belong to.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.AttemptSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`, p.title, p.year, e.name
		 FROM attempts a
		 LEFT JOIN papers p ON p.id = a.paper_id
		 LEFT JOIN exams e ON e.id = p.exam_id
		 WHERE a.user_id = $1
		 ORDER BY a.started_at DESC, a.id DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.AttemptSummary
	for rows.Next() {
		var s model.AttemptSummary
		dest := append(attemptDest(&s.Attempt), &s.PaperTitle, &s.PaperYear, &s.ExamName)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Update applies the non-nil fields of req and returns the updated row.
func (r *AttemptRepository) Update(ctx context.Context, id int64, req *model.UpdateAttemptRequest) (*model.Attempt, error) {
	sets := []string{}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if req.Score != nil {
		add("score", *req.Score)
	}
	if req.TimeSpent != nil {
		add("time_spent", *req.TimeSpent)
	}
	if req.Status != nil {
		add("status", *req.Status)
		if *req.Status == "completed" {
			sets = append(sets, "completed_at = COALESCE(completed_at, CURRENT_TIMESTAMP)")
		}
	}
	if req.Responses != nil {
		add("responses", req.Responses)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE attempts a SET ` + strings.Join(sets, ", ") + ` WHERE a.id = $1 RETURNING ` + attemptColumns
	a := &model.Attempt{}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(attemptDest(a)...); err != nil {
		return nil, err
	}
	return a, nil
}

// Progression returns the user's completed scores, oldest first.
func (r *AttemptRepository) Progression(ctx context.Context, userID int64, limit int) ([]model.ScorePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, score, completed_at FROM (
		   SELECT id, score, completed_at FROM attempts
		   WHERE user_id = $1 AND status = 'completed' AND completed_at IS NOT NULL
		   ORDER BY completed_at DESC LIMIT $2
		 ) recent ORDER BY completed_at`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ScorePoint, error) {
		var p model.ScorePoint
		err := row.Scan(&p.AttemptID, &p.Score, &p.CompletedAt)
		return p, err
	})
}

// nullTime maps the zero time to NULL so the column default applies.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
