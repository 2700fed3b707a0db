package model

import "time"

// PurchaseType records how access to an exam was granted.
type PurchaseType string

const (
	PurchaseFree    PurchaseType = "free"
	PurchasePremium PurchaseType = "premium"
)

// PurchaseStatusCompleted is the only status this backend writes.
const PurchaseStatusCompleted = "completed"

// Purchase grants a user access to every paper of an exam.
type Purchase struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	ExamID    int64        `json:"exam_id"`
	Type      PurchaseType `json:"type"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreatePurchaseRequest is the payload for buying exam access.
type CreatePurchaseRequest struct {
	ExamID int64        `json:"exam_id" binding:"required,min=1"`
	Type   PurchaseType `json:"type" binding:"omitempty,oneof=free premium"`
}

// AccessResponse reports whether a user may open an exam's paid papers.
type AccessResponse struct {
	HasAccess bool          `json:"has_access"`
	Type      *PurchaseType `json:"type"`
}
