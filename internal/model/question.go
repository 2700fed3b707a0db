package model

import (
	"encoding/json"
	"time"
)

// Question is a question row as stored. Options is kept raw because source
// data arrives as a JSON list, a JSON-encoded string of a list, or a
// label→text object; internal/engine normalizes it.
type Question struct {
	ID             int64           `json:"id"`
	PaperID        int64           `json:"paper_id"`
	QuestionNumber int             `json:"question_number"`
	QuestionText   string          `json:"question_text"`
	Options        json.RawMessage `json:"options"`
	CorrectAnswer  string          `json:"correct_answer"`
	Explanation    *string         `json:"explanation,omitempty"`
	Subject        *string         `json:"subject,omitempty"`
	Topic          *string         `json:"topic,omitempty"`
	Difficulty     *string         `json:"difficulty,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// QuestionForStudent is a question without the answer key or explanation.
type QuestionForStudent struct {
	ID             int64    `json:"id"`
	QuestionNumber int      `json:"question_number"`
	QuestionText   string   `json:"question_text"`
	Options        []string `json:"options"`
	Subject        *string  `json:"subject,omitempty"`
	Topic          *string  `json:"topic,omitempty"`
	Difficulty     *string  `json:"difficulty,omitempty"`
}

// AddQuestionRequest is one question in an admin bulk upload.
type AddQuestionRequest struct {
	QuestionNumber int             `json:"question_number" binding:"required,min=1"`
	QuestionText   string          `json:"question_text" binding:"required,min=1,max=4000"`
	Options        json.RawMessage `json:"options" binding:"required"`
	CorrectAnswer  string          `json:"correct_answer" binding:"required,max=255"`
	Explanation    *string         `json:"explanation" binding:"omitempty,max=8000"`
	Subject        *string         `json:"subject" binding:"omitempty,max=255"`
	Topic          *string         `json:"topic" binding:"omitempty,max=255"`
	Difficulty     *string         `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

// ReplaceQuestionsRequest replaces every question of a paper.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
