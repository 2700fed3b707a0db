package engine

import (
	"math"
	"time"
)

// AttemptStatusCompleted is the status stamped on a submitted attempt.
const AttemptStatusCompleted = "completed"

// ScoreResult is the outcome of scoring a response set.
type ScoreResult struct {
	Correct  int `json:"correct"`
	Answered int `json:"answered"`
	Total    int `json:"total"`
	Score    int `json:"score"`
}

// IsCorrect compares a raw selection with the question's resolved answer.
// Unscoreable questions are never correct.
func IsCorrect(q Question, selected string) bool {
	return q.Scoreable && selected == q.CorrectText
}

// ComputeScore scores responses against questions, matching each response to
// its own question only. Responses for ids not in questions are ignored.
func ComputeScore(questions []Question, responses map[int64]string) (ScoreResult, error) {
	if len(questions) == 0 {
		return ScoreResult{}, ErrEmptySession
	}
	res := ScoreResult{Total: len(questions)}
	for _, q := range questions {
		sel, ok := responses[q.ID]
		if !ok {
			continue
		}
		res.Answered++
		if IsCorrect(q, sel) {
			res.Correct++
		}
	}
	res.Score = int(math.Round(float64(res.Correct) * 100 / float64(res.Total)))
	return res, nil
}

// TimeSpent is the elapsed countdown, or the whole plan once expired.
func TimeSpent(planned, remaining int) int {
	if remaining > 0 {
		return planned - remaining
	}
	return planned
}

// Submission is the attempt payload built from a finished session.
// PaperID is nil for instant sessions.
type Submission struct {
	PaperID          *int64           `json:"paper_id"`
	Mode             Mode             `json:"mode"`
	Responses        map[int64]string `json:"responses"`
	QuestionIDs      []int64          `json:"question_ids"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"total_questions"`
	TimeSpentSeconds int              `json:"time_spent"`
	Status           string           `json:"status"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      time.Time        `json:"completed_at"`
}

// Responses returns the raw selected answers of every answered question.
func (c *Controller) Responses() map[int64]string {
	out := make(map[int64]string)
	if c.session == nil {
		return out
	}
	for _, q := range c.session.Questions {
		st := c.QuestionState(q.ID)
		if st.IsAnswered && st.SelectedAnswer != nil {
			out[q.ID] = *st.SelectedAnswer
		}
	}
	return out
}

// BuildSubmission scores the session and packages the attempt payload. The
// session is left untouched.
func (c *Controller) BuildSubmission(now time.Time) (Submission, error) {
	s := c.session
	if s == nil {
		return Submission{}, ErrNoSession
	}
	if !s.Mode.Timed() {
		return Submission{}, ErrNotSubmittable
	}

	responses := c.Responses()
	res, err := ComputeScore(s.Questions, responses)
	if err != nil {
		return Submission{}, err
	}

	ids := make([]int64, len(s.Questions))
	for i, q := range s.Questions {
		ids[i] = q.ID
	}

	var paperID *int64
	if s.PaperID != 0 {
		id := s.PaperID
		paperID = &id
	}

	return Submission{
		PaperID:          paperID,
		Mode:             s.Mode,
		Responses:        responses,
		QuestionIDs:      ids,
		Score:            res.Score,
		TotalQuestions:   res.Total,
		TimeSpentSeconds: TimeSpent(s.PlannedSeconds, s.TimeRemaining),
		Status:           AttemptStatusCompleted,
		StartedAt:        s.StartedAt,
		CompletedAt:      now.UTC(),
	}, nil
}
