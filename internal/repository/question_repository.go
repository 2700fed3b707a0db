package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exprep-backend/internal/model"
)

const questionColumns = `id, paper_id, question_number, question_text, options, correct_answer,
	explanation, subject, topic, difficulty, created_at`

// ErrQuestionsInUse rejects an upload that would delete questions stored
// attempts still point at.
var ErrQuestionsInUse = errors.New("questions are referenced by attempts")

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.PaperID, &q.QuestionNumber, &q.QuestionText, &q.Options,
			&q.CorrectAnswer, &q.Explanation, &q.Subject, &q.Topic, &q.Difficulty, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListByPaper retrieves all questions of a paper, ordered by question number.
func (r *QuestionRepository) ListByPaper(ctx context.Context, paperID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE paper_id = $1 ORDER BY question_number`, paperID)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListByIDs retrieves questions in the order of ids. Missing ids are skipped.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// Sample draws up to limit random questions, optionally restricted to the
// given subjects (case-insensitive).
func (r *QuestionRepository) Sample(ctx context.Context, subjects []string, limit int) ([]model.Question, error) {
	var rows pgx.Rows
	var err error
	if len(subjects) == 0 {
		rows, err = r.pool.Query(ctx,
			`SELECT `+questionColumns+` FROM questions ORDER BY random() LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+questionColumns+` FROM questions
			 WHERE LOWER(subject) = ANY(SELECT LOWER(s) FROM UNNEST($1::text[]) AS s)
			 ORDER BY random() LIMIT $2`, subjects, limit)
	}
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ReplaceForPaper makes the upload the paper's question set in one
// transaction. Rows are upserted on (paper_id, question_number) so existing
// question ids survive and stored attempts keep resolving. Numbers missing
// from the upload are deleted unless an attempt still references them, in
// which case nothing is written and ErrQuestionsInUse is returned.
func (r *QuestionRepository) ReplaceForPaper(ctx context.Context, paperID int64, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	numbers := make([]int32, len(questions))
	for i, q := range questions {
		numbers[i] = int32(q.QuestionNumber)
	}

	var inUse int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions q
		 WHERE q.paper_id = $1 AND NOT (q.question_number = ANY($2::int[]))
		   AND EXISTS (SELECT 1 FROM attempts a WHERE q.id = ANY(a.question_ids))`,
		paperID, numbers,
	).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("%w: %d removed questions are referenced by attempts", ErrQuestionsInUse, inUse)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM questions WHERE paper_id = $1 AND NOT (question_number = ANY($2::int[]))`,
		paperID, numbers,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (paper_id, question_number, question_text, options, correct_answer,
			                        explanation, subject, topic, difficulty)
			 VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
			 ON CONFLICT (paper_id, question_number) DO UPDATE SET
			   question_text  = EXCLUDED.question_text,
			   options        = EXCLUDED.options,
			   correct_answer = EXCLUDED.correct_answer,
			   explanation    = EXCLUDED.explanation,
			   subject        = EXCLUDED.subject,
			   topic          = EXCLUDED.topic,
			   difficulty     = EXCLUDED.difficulty`,
			paperID, q.QuestionNumber, q.QuestionText, string(q.Options), q.CorrectAnswer,
			q.Explanation, q.Subject, q.Topic, q.Difficulty,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	var examID int64
	if err := tx.QueryRow(ctx,
		`UPDATE papers SET total_questions = $2 WHERE id = $1 RETURNING exam_id`,
		paperID, len(questions),
	).Scan(&examID); err != nil {
		return err
	}
	if err := refreshExamCounts(ctx, tx, examID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
