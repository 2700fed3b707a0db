package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exprep-backend/internal/model"
)

// PurchaseRepository handles exam access grants.
type PurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepository creates a new PurchaseRepository.
func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

// ListByUser returns a user's purchases, newest first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, exam_id, type, status, created_at
		 FROM purchases WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ExamID, &p.Type, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// GetCompleted returns the completed purchase for a user and exam.
func (r *PurchaseRepository) GetCompleted(ctx context.Context, userID, examID int64) (*model.Purchase, error) {
	p := &model.Purchase{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, exam_id, type, status, created_at
		 FROM purchases WHERE user_id = $1 AND exam_id = $2 AND status = $3`,
		userID, examID, model.PurchaseStatusCompleted,
	).Scan(&p.ID, &p.UserID, &p.ExamID, &p.Type, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert records a purchase. A premium purchase upgrades an earlier free
// enrollment; a free enrollment never downgrades premium access.
func (r *PurchaseRepository) Upsert(ctx context.Context, p *model.Purchase) error {
	if p.Status == "" {
		p.Status = model.PurchaseStatusCompleted
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO purchases (user_id, exam_id, type, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, exam_id) DO UPDATE
		 SET type = CASE WHEN purchases.type = 'premium' THEN purchases.type ELSE EXCLUDED.type END,
		     status = EXCLUDED.status
		 RETURNING id, type, status, created_at`,
		p.UserID, p.ExamID, p.Type, p.Status,
	).Scan(&p.ID, &p.Type, &p.Status, &p.CreatedAt)
}
