package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exprep-backend/internal/model"
)

var (
	ErrDuplicateExam  = errors.New("exam with this name already exists")
	ErrDuplicatePaper = errors.New("paper with this year and title already exists")
)

const examColumns = `id, name, description, icon, category, is_popular, total_questions, years_available, created_at`

const paperColumns = `id, exam_id, year, title, total_questions, duration_minutes, is_free, created_at`

// ExamRepository handles exam and paper data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Name, &e.Description, &e.Icon, &e.Category,
		&e.IsPopular, &e.TotalQuestions, &e.YearsAvailable, &e.CreatedAt)
}

func scanPaper(row pgx.Row, p *model.Paper) error {
	return row.Scan(&p.ID, &p.ExamID, &p.Year, &p.Title, &p.TotalQuestions,
		&p.DurationMinutes, &p.IsFree, &p.CreatedAt)
}

// List returns all exams, popular ones first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY is_popular DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	e := &model.Exam{}
	if err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id), e); err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (name, description, icon, category, is_popular)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.Name, e.Description, e.Icon, e.Category, e.IsPopular,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateExam
		}
		return err
	}
	return nil
}

// ListPapers returns an exam's papers, newest year first.
func (r *ExamRepository) ListPapers(ctx context.Context, examID int64) ([]model.Paper, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE exam_id = $1 ORDER BY year DESC, title`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []model.Paper
	for rows.Next() {
		var p model.Paper
		if err := scanPaper(rows, &p); err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// GetPaper retrieves a paper by ID.
func (r *ExamRepository) GetPaper(ctx context.Context, id int64) (*model.Paper, error) {
	p := &model.Paper{}
	if err := scanPaper(r.pool.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePaper inserts a new paper and refreshes the exam's year count.
func (r *ExamRepository) CreatePaper(ctx context.Context, p *model.Paper) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO papers (exam_id, year, title, duration_minutes, is_free)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, total_questions, created_at`,
		p.ExamID, p.Year, p.Title, p.DurationMinutes, p.IsFree,
	).Scan(&p.ID, &p.TotalQuestions, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePaper
		}
		return err
	}

	if err := refreshExamCounts(ctx, tx, p.ExamID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// refreshExamCounts recomputes the denormalized exam totals.
func refreshExamCounts(ctx context.Context, tx pgx.Tx, examID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE exams SET
		   total_questions = COALESCE((SELECT SUM(total_questions) FROM papers WHERE exam_id = $1), 0),
		   years_available = (SELECT COUNT(DISTINCT year) FROM papers WHERE exam_id = $1)
		 WHERE id = $1`, examID)
	return err
}
