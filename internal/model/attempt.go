package model

import "time"

// Attempt is the persisted outcome of a submitted practice session.
// PaperID is nil for instant tests; QuestionIDs keeps their order so they
// can be reviewed later.
type Attempt struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"user_id"`
	PaperID        *int64           `json:"paper_id"`
	Mode           string           `json:"mode"`
	Responses      map[int64]string `json:"responses"`
	QuestionIDs    []int64          `json:"question_ids"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	TimeSpent      int              `json:"time_spent"`
	Status         string           `json:"status"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// AttemptSummary is an attempt row joined with its paper for listings.
type AttemptSummary struct {
	Attempt
	PaperTitle *string `json:"paper_title,omitempty"`
	PaperYear  *int    `json:"paper_year,omitempty"`
	ExamName   *string `json:"exam_name,omitempty"`
}

// CreateAttemptRequest records an attempt directly.
type CreateAttemptRequest struct {
	PaperID        *int64           `json:"paper_id" binding:"omitempty,min=1"`
	Mode           string           `json:"mode" binding:"required,oneof=exam instant"`
	Responses      map[int64]string `json:"responses"`
	QuestionIDs    []int64          `json:"question_ids"`
	Score          int              `json:"score" binding:"min=0,max=100"`
	TotalQuestions int              `json:"total_questions" binding:"min=0"`
	TimeSpent      int              `json:"time_spent" binding:"min=0"`
	Status         string           `json:"status" binding:"omitempty,oneof=in_progress completed abandoned"`
}

// UpdateAttemptRequest patches mutable attempt fields. Nil fields are kept.
type UpdateAttemptRequest struct {
	Score     *int             `json:"score" binding:"omitempty,min=0,max=100"`
	TimeSpent *int             `json:"time_spent" binding:"omitempty,min=0"`
	Status    *string          `json:"status" binding:"omitempty,oneof=in_progress completed abandoned"`
	Responses map[int64]string `json:"responses"`
}

// UserStats is the per-user aggregate maintained by the stats worker.
type UserStats struct {
	UserID         int64     `json:"user_id"`
	TotalAttempts  int       `json:"total_attempts"`
	TotalScore     int64     `json:"total_score"`
	BestScore      int       `json:"best_score"`
	TotalQuestions int64     `json:"total_questions"`
	TotalTimeSpent int64     `json:"total_time_spent"`
	Bucket0To25    int       `json:"bucket_0_25"`
	Bucket25To50   int       `json:"bucket_25_50"`
	Bucket50To75   int       `json:"bucket_50_75"`
	Bucket75To100  int       `json:"bucket_75_100"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ScorePoint is one entry of a user's score progression.
type ScorePoint struct {
	AttemptID   int64     `json:"attempt_id"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// Analysis is the performance overview for a user.
type Analysis struct {
	TotalAttempts          int            `json:"total_attempts"`
	AverageScore           int            `json:"average_score"`
	BestScore              int            `json:"best_score"`
	AverageTimePerQuestion int            `json:"average_time_per_question"`
	Distribution           map[string]int `json:"distribution"`
	Progression            []ScorePoint   `json:"progression"`
}
