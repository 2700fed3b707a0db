package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/model"
)

// Practice errors.
var (
	ErrSubmissionInFlight  = errors.New("submission already in progress")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrSolutionUnavailable = errors.New("solutions are only shown in browse mode")
	ErrSessionUnavailable  = errors.New("practice session unavailable")
	ErrPracticeClosed      = errors.New("practice service is shutting down")
	ErrTimeUp              = errors.New("time is up")
)

// SessionStore persists one serialized session per user.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (*engine.Session, error)
	Save(ctx context.Context, userID int64, s *engine.Session) error
	Delete(ctx context.Context, userID int64) error
}

// PaperSource supplies question sets for new sessions.
type PaperSource interface {
	OpenPaper(ctx context.Context, userID, paperID int64) (*model.Paper, []engine.Question, error)
	SampleQuestions(ctx context.Context, subjects []string, n int) ([]engine.Question, error)
}

// AttemptRecorder persists a submission and returns the attempt id.
type AttemptRecorder interface {
	Record(ctx context.Context, userID int64, sub engine.Submission) (int64, error)
}

// PracticeOptions tunes session runners. Zero values take defaults.
type PracticeOptions struct {
	TickerFactory   engine.TickerFactory
	TickInterval    time.Duration
	AutoSubmitDelay time.Duration
	// IdleTimeout evicts a runner with no viewers; zero keeps it forever.
	IdleTimeout    time.Duration
	SubmitTimeout  time.Duration
	StoreTimeout   time.Duration
	ExamMinutes    int
	InstantCount   int
	InstantMinutes int
	ViewerBuffer   int
}

func (o PracticeOptions) withDefaults() PracticeOptions {
	if o.TickerFactory == nil {
		o.TickerFactory = engine.RealTicker
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.AutoSubmitDelay < 0 {
		o.AutoSubmitDelay = 0
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = 15 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 3 * time.Second
	}
	if o.ExamMinutes <= 0 {
		o.ExamMinutes = 180
	}
	if o.InstantCount <= 0 {
		o.InstantCount = 50
	}
	if o.InstantMinutes <= 0 {
		o.InstantMinutes = 60
	}
	if o.ViewerBuffer <= 0 {
		o.ViewerBuffer = 64
	}
	return o
}

// PracticeService runs every user's practice session. Each user's session is
// owned by one runner goroutine and every operation is a command sent to it.
type PracticeService struct {
	store    SessionStore
	papers   PaperSource
	attempts AttemptRecorder
	opts     PracticeOptions
	log      zerolog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	runners map[int64]*sessionRunner
	closed  bool
}

// NewPracticeService creates a PracticeService. Call Shutdown to stop it.
func NewPracticeService(store SessionStore, papers PaperSource, attempts AttemptRecorder, opts PracticeOptions, log zerolog.Logger) *PracticeService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PracticeService{
		store:    store,
		papers:   papers,
		attempts: attempts,
		opts:     opts.withDefaults(),
		log:      log.With().Str("component", "practice").Logger(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		runners:  make(map[int64]*sessionRunner),
	}
}

// Shutdown stops every runner, letting in-flight submissions finish.
func (s *PracticeService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRunners reports how many users currently have a live runner.
func (s *PracticeService) ActiveRunners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// runner returns the user's runner, starting one from the stored session.
func (s *PracticeService) runner(ctx context.Context, userID int64) (*sessionRunner, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrPracticeClosed
	}
	if r, ok := s.runners[userID]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrPracticeClosed
	}
	if r, ok := s.runners[userID]; ok {
		return r, nil
	}
	r := newSessionRunner(s, userID, sess)
	s.runners[userID] = r
	s.wg.Add(1)
	go r.run(s.ctx)
	return r, nil
}

// forget unregisters r if it is still the user's runner.
func (s *PracticeService) forget(r *sessionRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runners[r.userID] == r {
		delete(s.runners, r.userID)
	}
}

// exec runs fn on the user's runner, retrying once a runner has exited.
func (s *PracticeService) exec(ctx context.Context, userID int64, fn commandFunc) (any, error) {
	for range 3 {
		r, err := s.runner(ctx, userID)
		if err != nil {
			return nil, err
		}
		v, err := r.do(ctx, fn)
		if errors.Is(err, errRunnerGone) {
			continue
		}
		return v, err
	}
	return nil, ErrSessionUnavailable
}

func (s *PracticeService) execView(ctx context.Context, userID int64, fn commandFunc) (*SessionView, error) {
	v, err := s.exec(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	return v.(*SessionView), nil
}

// ─── Operations ─────────────────────────────────────────────────────

// Start opens a new session, replacing any current one. Exam and browse
// sessions load a paper; instant sessions sample the question bank.
func (s *PracticeService) Start(ctx context.Context, userID int64, req *model.StartSessionRequest) (*SessionView, error) {
	mode, err := engine.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	var (
		paperID   int64
		questions []engine.Question
		minutes   int
	)
	switch mode {
	case engine.ModeExam, engine.ModeBrowse:
		if req.PaperID <= 0 {
			return nil, fmt.Errorf("%w: paper_id is required", engine.ErrInvalidArgument)
		}
		paper, qs, err := s.papers.OpenPaper(ctx, userID, req.PaperID)
		if err != nil {
			return nil, err
		}
		paperID, questions = paper.ID, qs
		minutes = s.opts.ExamMinutes
		if paper.DurationMinutes != nil && *paper.DurationMinutes > 0 {
			minutes = *paper.DurationMinutes
		}
	case engine.ModeInstant:
		count := req.QuestionCount
		if count <= 0 {
			count = s.opts.InstantCount
		}
		qs, err := s.papers.SampleQuestions(ctx, req.Subjects, count)
		if err != nil {
			return nil, err
		}
		questions = qs
		minutes = s.opts.InstantMinutes
	default:
		return nil, fmt.Errorf("%w: mode %q cannot be started", engine.ErrInvalidArgument, mode)
	}
	if req.DurationMinutes > 0 && mode != engine.ModeBrowse {
		minutes = req.DurationMinutes
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.start(paperID, questions, mode, minutes)
	})
}

// Get returns the current session.
func (s *PracticeService) Get(ctx context.Context, userID int64) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		if !r.ctrl.Active() {
			return nil, engine.ErrNoSession
		}
		return r.view(), nil
	})
}

// End discards the current session without submitting it.
func (s *PracticeService) End(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, userID, func(r *sessionRunner) (any, error) {
		return nil, r.end()
	})
	return err
}

// Pause freezes the countdown.
func (s *PracticeService) Pause(ctx context.Context, userID int64) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutate(func(c *engine.Controller) error { return c.PauseSession() })
	})
}

// Resume restarts the countdown when time is left.
func (s *PracticeService) Resume(ctx context.Context, userID int64) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutate(func(c *engine.Controller) error { return c.ResumeSession() })
	})
}

// Navigate moves the cursor. Out-of-range moves leave it where it is.
func (s *PracticeService) Navigate(ctx context.Context, userID int64, req *model.NavigateRequest) (*SessionView, error) {
	var move func(c *engine.Controller)
	switch req.Action {
	case "goto":
		idx := req.Index
		move = func(c *engine.Controller) { c.GoToQuestion(idx) }
	case "next":
		move = (*engine.Controller).NextQuestion
	case "previous":
		move = (*engine.Controller).PreviousQuestion
	default:
		return nil, fmt.Errorf("%w: unknown navigation %q", engine.ErrInvalidArgument, req.Action)
	}
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutate(func(c *engine.Controller) error {
			move(c)
			return nil
		})
	})
}

// SelectAnswer records the chosen option for a question.
func (s *PracticeService) SelectAnswer(ctx context.Context, userID, questionID int64, answer string) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutateAnswer(func(c *engine.Controller) error { return c.SelectAnswer(questionID, answer) })
	})
}

// ClearAnswer removes the answer of a question.
func (s *PracticeService) ClearAnswer(ctx context.Context, userID, questionID int64) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutateAnswer(func(c *engine.Controller) error { return c.ClearAnswer(questionID) })
	})
}

// ToggleMark flips the review flag of a question.
func (s *PracticeService) ToggleMark(ctx context.Context, userID, questionID int64) (*SessionView, error) {
	return s.execView(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.mutateAnswer(func(c *engine.Controller) error {
			_, err := c.ToggleMarkForReview(questionID)
			return err
		})
	})
}

// Solution reveals a question's answer and explanation in browse mode.
func (s *PracticeService) Solution(ctx context.Context, userID, questionID int64) (*Solution, error) {
	v, err := s.exec(ctx, userID, func(r *sessionRunner) (any, error) {
		sess := r.ctrl.Session()
		if sess == nil {
			return nil, engine.ErrNoSession
		}
		if sess.Mode != engine.ModeBrowse {
			return nil, ErrSolutionUnavailable
		}
		q, ok := r.ctrl.Question(questionID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown question %d", engine.ErrInvalidArgument, questionID)
		}
		return &Solution{
			QuestionID:    q.ID,
			CorrectAnswer: q.CorrectText,
			Scoreable:     q.Scoreable,
			Explanation:   q.Explanation,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Solution), nil
}

// Submit scores the session and records the attempt, waiting for the
// outcome. On failure the session stays open and can be submitted again.
func (s *PracticeService) Submit(ctx context.Context, userID int64) (*model.SubmitResult, error) {
	v, err := s.exec(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.submit()
	})
	if err != nil {
		return nil, err
	}
	wait := v.(chan submitReply)
	select {
	case rep := <-wait:
		return rep.result, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Attach registers a live viewer for the user's session. The viewer
// receives the current state first and the countdown runs while at least
// one viewer is attached.
func (s *PracticeService) Attach(ctx context.Context, userID int64) (*Viewer, error) {
	v, err := s.exec(ctx, userID, func(r *sessionRunner) (any, error) {
		return r.attach()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Viewer), nil
}

// Detach unregisters a viewer. Detaching twice is harmless.
func (s *PracticeService) Detach(v *Viewer) {
	_, err := v.runner.do(context.Background(), func(r *sessionRunner) (any, error) {
		r.detach(v.id)
		return nil, nil
	})
	if err != nil && !errors.Is(err, errRunnerGone) {
		s.log.Warn().Err(err).Int64("user_id", v.runner.userID).Msg("Detach failed")
	}
}

// ─── Views ──────────────────────────────────────────────────────────

// SessionView is the client-facing snapshot of a session. The answer key is
// never included.
type SessionView struct {
	SessionID      uuid.UUID         `json:"session_id"`
	PaperID        int64             `json:"paper_id"`
	Mode           engine.Mode       `json:"mode"`
	CurrentIndex   int               `json:"current_index"`
	Current        *QuestionView     `json:"current_question"`
	Palette        []PaletteEntry    `json:"palette"`
	Summary        engine.Summary    `json:"summary"`
	TimeRemaining  int               `json:"time_remaining"`
	TimeDisplay    string            `json:"time_display"`
	TimerLevel     engine.TimerLevel `json:"timer_level"`
	PlannedSeconds int               `json:"planned_seconds"`
	IsTimerRunning bool              `json:"is_timer_running"`
	IsPaused       bool              `json:"is_paused"`
	Submitting     bool              `json:"submitting"`
	StartedAt      time.Time         `json:"started_at"`
}

// QuestionView is the question under the cursor with the user's state.
type QuestionView struct {
	ID                int64    `json:"id"`
	QuestionNumber    int      `json:"question_number"`
	Text              string   `json:"text"`
	Options           []string `json:"options"`
	Subject           *string  `json:"subject,omitempty"`
	Topic             *string  `json:"topic,omitempty"`
	Difficulty        *string  `json:"difficulty,omitempty"`
	SelectedAnswer    *string  `json:"selected_answer"`
	IsMarkedForReview bool     `json:"is_marked_for_review"`
}

// PaletteEntry is one cell of the question navigator.
type PaletteEntry struct {
	ID       int64 `json:"id"`
	Number   int   `json:"number"`
	Answered bool  `json:"answered"`
	Marked   bool  `json:"marked"`
}

// TickView is the countdown pushed every second.
type TickView struct {
	TimeRemaining int               `json:"time_remaining"`
	TimeDisplay   string            `json:"time_display"`
	TimerLevel    engine.TimerLevel `json:"timer_level"`
}

// Solution is a browse-mode answer reveal.
type Solution struct {
	QuestionID    int64   `json:"question_id"`
	CorrectAnswer string  `json:"correct_answer"`
	Scoreable     bool    `json:"scoreable"`
	Explanation   *string `json:"explanation,omitempty"`
}

func buildView(c *engine.Controller, submitting bool, log zerolog.Logger) *SessionView {
	s := c.Session()
	if s == nil {
		return nil
	}
	v := &SessionView{
		SessionID:      s.ID,
		PaperID:        s.PaperID,
		Mode:           s.Mode,
		CurrentIndex:   s.CurrentIndex,
		Palette:        make([]PaletteEntry, len(s.Questions)),
		Summary:        c.Summary(),
		TimeRemaining:  s.TimeRemaining,
		TimeDisplay:    engine.FormatRemaining(s.TimeRemaining),
		TimerLevel:     engine.Level(s.TimeRemaining, s.PlannedSeconds),
		PlannedSeconds: s.PlannedSeconds,
		IsTimerRunning: s.IsTimerRunning,
		IsPaused:       s.IsPaused,
		Submitting:     submitting,
		StartedAt:      s.StartedAt,
	}
	for i, q := range s.Questions {
		st := c.QuestionState(q.ID)
		v.Palette[i] = PaletteEntry{ID: q.ID, Number: q.QuestionNumber, Answered: st.IsAnswered, Marked: st.IsMarkedForReview}
	}
	if q, ok := c.CurrentQuestion(); ok {
		st := c.QuestionState(q.ID)
		opts := q.Options
		if s.Mode == engine.ModeBrowse {
			opts = engine.DisplayOptions(q, log)
		}
		v.Current = &QuestionView{
			ID:                q.ID,
			QuestionNumber:    q.QuestionNumber,
			Text:              q.Text,
			Options:           opts,
			Subject:           q.Subject,
			Topic:             q.Topic,
			Difficulty:        q.Difficulty,
			SelectedAnswer:    st.SelectedAnswer,
			IsMarkedForReview: st.IsMarkedForReview,
		}
	}
	return v
}

func tickView(s *engine.Session) *TickView {
	return &TickView{
		TimeRemaining: s.TimeRemaining,
		TimeDisplay:   engine.FormatRemaining(s.TimeRemaining),
		TimerLevel:    engine.Level(s.TimeRemaining, s.PlannedSeconds),
	}
}
