package model

// StartSessionRequest opens a practice session. Paper modes need PaperID;
// instant mode draws QuestionCount questions from the bank instead.
type StartSessionRequest struct {
	Mode            string   `json:"mode" binding:"required,oneof=exam browse instant"`
	PaperID         int64    `json:"paper_id" binding:"required_unless=Mode instant"`
	QuestionCount   int      `json:"question_count" binding:"omitempty,min=1,max=200"`
	Subjects        []string `json:"subjects" binding:"omitempty,dive,min=1,max=255"`
	DurationMinutes int      `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
}

// NavigateRequest moves the session cursor.
type NavigateRequest struct {
	Action string `json:"action" binding:"required,oneof=goto next previous"`
	Index  int    `json:"index"`
}

// SelectAnswerRequest selects an option for a question.
type SelectAnswerRequest struct {
	Answer string `json:"answer" binding:"required,max=4000"`
}

// SubmitResult is returned after a successful submission.
type SubmitResult struct {
	AttemptID      int64            `json:"attempt_id"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	TimeSpent      int              `json:"time_spent"`
	Responses      map[int64]string `json:"responses"`
}
