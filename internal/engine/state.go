package engine

import "fmt"

// QuestionState is the per-question mutable state of a session.
// IsAnswered is always SelectedAnswer != nil.
type QuestionState struct {
	QuestionID        int64   `json:"question_id"`
	SelectedAnswer    *string `json:"selected_answer"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
	IsAnswered        bool    `json:"is_answered"`
	TimeSpent         int     `json:"time_spent"`
}

func newQuestionState(qid int64) QuestionState {
	return QuestionState{QuestionID: qid}
}

// SelectAnswer records answer as the selected option text for qid.
func (c *Controller) SelectAnswer(qid int64, answer string) error {
	st, err := c.mutableState(qid)
	if err != nil {
		return err
	}
	st.SelectedAnswer = &answer
	st.IsAnswered = true
	c.session.QuestionStates[qid] = st
	return nil
}

// ClearAnswer resets the selection for qid. The review mark is kept.
func (c *Controller) ClearAnswer(qid int64) error {
	st, err := c.mutableState(qid)
	if err != nil {
		return err
	}
	st.SelectedAnswer = nil
	st.IsAnswered = false
	c.session.QuestionStates[qid] = st
	return nil
}

// ToggleMarkForReview flips the review mark for qid and returns the new value.
func (c *Controller) ToggleMarkForReview(qid int64) (bool, error) {
	st, err := c.mutableState(qid)
	if err != nil {
		return false, err
	}
	st.IsMarkedForReview = !st.IsMarkedForReview
	c.session.QuestionStates[qid] = st
	return st.IsMarkedForReview, nil
}

// QuestionState returns the state for qid, or a fresh default when there is
// no session or no entry.
func (c *Controller) QuestionState(qid int64) QuestionState {
	if c.session == nil {
		return newQuestionState(qid)
	}
	if st, ok := c.session.QuestionStates[qid]; ok {
		return st
	}
	return newQuestionState(qid)
}

func (c *Controller) mutableState(qid int64) (QuestionState, error) {
	if c.session == nil {
		return QuestionState{}, ErrNoSession
	}
	if c.session.Mode == ModeReview {
		return QuestionState{}, ErrReadOnly
	}
	st, ok := c.session.QuestionStates[qid]
	if !ok {
		return QuestionState{}, fmt.Errorf("%w: unknown question %d", ErrInvalidArgument, qid)
	}
	return st, nil
}
