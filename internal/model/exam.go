package model

import (
	"time"
)

// Exam is an entrance exam (JEE Main, NEET, ...) grouping year-wise papers.
type Exam struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Icon           *string   `json:"icon,omitempty"`
	Category       *string   `json:"category,omitempty"`
	IsPopular      bool      `json:"is_popular"`
	TotalQuestions int       `json:"total_questions"`
	YearsAvailable int       `json:"years_available"`
	CreatedAt      time.Time `json:"created_at"`
}

// Paper is a specific year's question set for an exam.
type Paper struct {
	ID              int64     `json:"id"`
	ExamID          int64     `json:"exam_id"`
	Year            int       `json:"year"`
	Title           string    `json:"title"`
	TotalQuestions  int       `json:"total_questions"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	IsFree          bool      `json:"is_free"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateExamRequest is the payload for creating an exam.
type CreateExamRequest struct {
	Name        string  `json:"name" binding:"required,min=2,max=255"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Icon        *string `json:"icon" binding:"omitempty,max=255"`
	Category    *string `json:"category" binding:"omitempty,max=255"`
	IsPopular   bool    `json:"is_popular"`
}

// CreatePaperRequest is the payload for adding a paper to an exam.
type CreatePaperRequest struct {
	Year            int    `json:"year" binding:"required,min=1950,max=2100"`
	Title           string `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
	IsFree          bool   `json:"is_free"`
}
