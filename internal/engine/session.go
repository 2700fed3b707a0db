package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects how a session behaves.
type Mode string

const (
	ModeExam    Mode = "exam"
	ModeBrowse  Mode = "browse"
	ModeReview  Mode = "review"
	ModeInstant Mode = "instant"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeExam, ModeBrowse, ModeReview, ModeInstant:
		return true
	}
	return false
}

// Timed reports whether the mode runs a countdown and can be submitted.
func (m Mode) Timed() bool {
	return m == ModeExam || m == ModeInstant
}

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
	}
	return m, nil
}

// Session is the whole state of one practice attempt. PaperID is 0 for an
// instant session built from an ad-hoc question set.
type Session struct {
	ID             uuid.UUID               `json:"session_id"`
	PaperID        int64                   `json:"paper_id"`
	Mode           Mode                    `json:"mode"`
	Questions      []Question              `json:"questions"`
	CurrentIndex   int                     `json:"current_index"`
	QuestionStates map[int64]QuestionState `json:"question_states"`
	TimeRemaining  int                     `json:"time_remaining"`
	PlannedSeconds int                     `json:"planned_seconds"`
	IsTimerRunning bool                    `json:"is_timer_running"`
	IsPaused       bool                    `json:"is_paused"`
	AttemptID      *int64                  `json:"attempt_id,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
}

// Summary is the answered/marked tally of a session.
type Summary struct {
	Answered   int `json:"answered"`
	Marked     int `json:"marked"`
	Unanswered int `json:"unanswered"`
	Total      int `json:"total"`
}

// Controller is the session state machine. A nil session means NotStarted
// (or Ended). It is not safe for concurrent use; callers serialize access.
type Controller struct {
	session *Session
	log     zerolog.Logger
	now     func() time.Time
}

// NewController returns a controller with no session.
func NewController(log zerolog.Logger) *Controller {
	return &Controller{log: log, now: time.Now}
}

// Restore wraps an already-decoded session.
func Restore(s *Session, log zerolog.Logger) *Controller {
	c := NewController(log)
	c.session = s
	return c
}

// Session returns the live session, or nil.
func (c *Controller) Session() *Session {
	return c.session
}

// Active reports whether a session exists.
func (c *Controller) Active() bool {
	return c.session != nil
}

// StartSession replaces any existing session with a fresh one.
func (c *Controller) StartSession(paperID int64, questions []Question, mode Mode, durationMinutes int) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, mode)
	}
	if durationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	states := make(map[int64]QuestionState, len(questions))
	for _, q := range questions {
		if _, dup := states[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question %d", ErrInvalidArgument, q.ID)
		}
		states[q.ID] = newQuestionState(q.ID)
	}

	planned := 0
	if mode.Timed() {
		planned = durationMinutes * 60
	}

	c.session = &Session{
		ID:             uuid.New(),
		PaperID:        paperID,
		Mode:           mode,
		Questions:      questions,
		QuestionStates: states,
		TimeRemaining:  planned,
		PlannedSeconds: planned,
		IsTimerRunning: mode.Timed() && planned > 0,
		StartedAt:      c.now().UTC(),
	}
	return nil
}

// EndSession discards the session.
func (c *Controller) EndSession() {
	c.session = nil
}

// PauseSession freezes the countdown.
func (c *Controller) PauseSession() error {
	if c.session == nil {
		return ErrNoSession
	}
	c.session.IsPaused = true
	c.session.IsTimerRunning = false
	return nil
}

// ResumeSession unfreezes the countdown for timed modes with time left.
func (c *Controller) ResumeSession() error {
	if c.session == nil {
		return ErrNoSession
	}
	c.session.IsPaused = false
	c.session.IsTimerRunning = c.session.Mode.Timed() && c.session.TimeRemaining > 0
	return nil
}

// GoToQuestion moves the cursor. Out-of-range indexes are ignored.
func (c *Controller) GoToQuestion(index int) {
	if c.session == nil || index < 0 || index >= len(c.session.Questions) {
		return
	}
	c.session.CurrentIndex = index
}

// NextQuestion advances the cursor, stopping at the last question.
func (c *Controller) NextQuestion() {
	if c.session == nil {
		return
	}
	c.GoToQuestion(c.session.CurrentIndex + 1)
}

// PreviousQuestion moves the cursor back, stopping at the first question.
func (c *Controller) PreviousQuestion() {
	if c.session == nil {
		return
	}
	c.GoToQuestion(c.session.CurrentIndex - 1)
}

// UpdateTimer advances the countdown by one second. It reports whether the
// remaining time changed. Reaching zero stops the timer but never submits.
func (c *Controller) UpdateTimer() bool {
	s := c.session
	if s == nil || !s.IsTimerRunning || s.TimeRemaining <= 0 {
		return false
	}
	s.TimeRemaining--
	if s.TimeRemaining == 0 {
		s.IsTimerRunning = false
	}
	return true
}

// Expired reports whether a timed session has run out of time.
func (c *Controller) Expired() bool {
	s := c.session
	return s != nil && s.Mode.Timed() && s.PlannedSeconds > 0 && s.TimeRemaining == 0
}

// CurrentQuestion returns the question under the cursor.
func (c *Controller) CurrentQuestion() (Question, bool) {
	s := c.session
	if s == nil || len(s.Questions) == 0 {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Question looks up a session question by id.
func (c *Controller) Question(qid int64) (Question, bool) {
	if c.session == nil {
		return Question{}, false
	}
	for _, q := range c.session.Questions {
		if q.ID == qid {
			return q, true
		}
	}
	return Question{}, false
}

// Summary tallies the question states. It scans every question on each call.
func (c *Controller) Summary() Summary {
	s := c.session
	if s == nil {
		return Summary{}
	}
	sum := Summary{Total: len(s.Questions)}
	for _, q := range s.Questions {
		st := c.QuestionState(q.ID)
		if st.IsAnswered {
			sum.Answered++
		}
		if st.IsMarkedForReview {
			sum.Marked++
		}
	}
	sum.Unanswered = sum.Total - sum.Answered
	return sum
}
