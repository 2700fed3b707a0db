package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Outcome is the per-question result of a reviewed attempt.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
)

// ReviewItem pairs a question with the recorded answer and its outcome.
type ReviewItem struct {
	Question       Question `json:"question"`
	SelectedAnswer *string  `json:"selected_answer"`
	Outcome        Outcome  `json:"outcome"`
}

// Review is the read-only replay of a submitted attempt.
type Review struct {
	Items      []ReviewItem `json:"items"`
	Correct    int          `json:"correct"`
	Incorrect  int          `json:"incorrect"`
	Unanswered int          `json:"unanswered"`
	Total      int          `json:"total"`
	Score      int          `json:"score"`
	// Accuracy is the percentage correct among answered questions.
	Accuracy int `json:"accuracy"`
}

// StartReview builds a review-mode controller seeded with a stored attempt's
// responses. Responses for questions outside the set are dropped.
func StartReview(paperID int64, questions []Question, responses map[int64]string, log zerolog.Logger) (*Controller, error) {
	c := NewController(log)
	if err := c.StartSession(paperID, questions, ModeReview, 0); err != nil {
		return nil, err
	}
	for qid, ans := range responses {
		st, ok := c.session.QuestionStates[qid]
		if !ok {
			log.Warn().Int64("question_id", qid).Msg("Response for question outside attempt, ignoring")
			continue
		}
		a := ans
		st.SelectedAnswer = &a
		st.IsAnswered = true
		c.session.QuestionStates[qid] = st
	}
	return c, nil
}

// Review reports per-question outcomes for the current session.
func (c *Controller) Review() (Review, error) {
	s := c.session
	if s == nil {
		return Review{}, ErrNoSession
	}
	if len(s.Questions) == 0 {
		return Review{}, fmt.Errorf("review: %w", ErrEmptySession)
	}

	r := Review{Total: len(s.Questions), Items: make([]ReviewItem, 0, len(s.Questions))}
	for _, q := range s.Questions {
		st := c.QuestionState(q.ID)
		item := ReviewItem{Question: q, SelectedAnswer: st.SelectedAnswer}
		switch {
		case !st.IsAnswered || st.SelectedAnswer == nil:
			item.Outcome = OutcomeUnanswered
			r.Unanswered++
		case IsCorrect(q, *st.SelectedAnswer):
			item.Outcome = OutcomeCorrect
			r.Correct++
		default:
			item.Outcome = OutcomeIncorrect
			r.Incorrect++
		}
		r.Items = append(r.Items, item)
	}

	r.Score = int(math.Round(float64(r.Correct) * 100 / float64(r.Total)))
	if answered := r.Correct + r.Incorrect; answered > 0 {
		r.Accuracy = int(math.Round(float64(r.Correct) * 100 / float64(answered)))
	}
	return r, nil
}
