package engine

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// Marshal serializes the whole session for persistence.
func Marshal(s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	return json.Marshal(s)
}

// Unmarshal decodes a persisted session and repairs it so the structural
// invariants hold again: every question has exactly one state, the cursor is
// in range, remaining time is within the plan, and the running flag agrees
// with mode, pause and remaining time.
func Unmarshal(data []byte, log zerolog.Logger) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.Mode.Valid() {
		return nil, fmt.Errorf("decode session: %w: unknown mode %q", ErrInvalidArgument, s.Mode)
	}

	states := make(map[int64]QuestionState, len(s.Questions))
	for _, q := range s.Questions {
		st, ok := s.QuestionStates[q.ID]
		if !ok {
			log.Warn().Int64("question_id", q.ID).Msg("Persisted session missing question state, resetting")
			st = newQuestionState(q.ID)
		}
		st.QuestionID = q.ID
		st.IsAnswered = st.SelectedAnswer != nil
		states[q.ID] = st
	}
	if extra := len(s.QuestionStates) - countShared(s.QuestionStates, states); extra > 0 {
		log.Warn().Int("dropped", extra).Msg("Persisted session had states for unknown questions")
	}
	s.QuestionStates = states

	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		s.CurrentIndex = 0
	}
	if s.PlannedSeconds < 0 {
		s.PlannedSeconds = 0
	}
	if s.TimeRemaining < 0 {
		s.TimeRemaining = 0
	}
	if s.TimeRemaining > s.PlannedSeconds {
		s.TimeRemaining = s.PlannedSeconds
	}
	s.IsTimerRunning = s.Mode.Timed() && !s.IsPaused && s.TimeRemaining > 0

	return &s, nil
}

func countShared(a, b map[int64]QuestionState) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
