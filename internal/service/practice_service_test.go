package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type tickerSpy struct {
	created chan *manualTicker
}

func newTickerSpy() *tickerSpy {
	return &tickerSpy{created: make(chan *manualTicker, 32)}
}

func (s *tickerSpy) factory(time.Duration) engine.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	s.created <- t
	return t
}

func (s *tickerSpy) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-s.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("ticker was never armed")
		return nil
	}
}

func (s *tickerSpy) assertNone(t *testing.T) {
	t.Helper()
	select {
	case <-s.created:
		t.Fatal("ticker armed unexpectedly")
	default:
	}
}

func testQuestionSet(n int) []engine.Question {
	qs := make([]engine.Question, n)
	for i := range qs {
		qs[i] = engine.Question{
			ID:             int64(i + 1),
			QuestionNumber: i + 1,
			Text:           fmt.Sprintf("Question %d", i+1),
			Options:        []string{"a", "b", "c", "d"},
			CorrectAnswer:  "a",
			CorrectText:    "a",
			Scoreable:      true,
		}
	}
	return qs
}

type fakePapers struct {
	questions []engine.Question
	minutes   *int
}

func (f *fakePapers) OpenPaper(_ context.Context, _ int64, paperID int64) (*model.Paper, []engine.Question, error) {
	if paperID != 1 {
		return nil, nil, pgx.ErrNoRows
	}
	return &model.Paper{ID: 1, ExamID: 1, DurationMinutes: f.minutes}, f.questions, nil
}

func (f *fakePapers) SampleQuestions(_ context.Context, _ []string, n int) ([]engine.Question, error) {
	if n > len(f.questions) {
		n = len(f.questions)
	}
	return f.questions[:n], nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	fail    error
	gate    chan struct{}
	started chan struct{}
	subs    []engine.Submission
	nextID  int64
}

func (f *fakeRecorder) Record(_ context.Context, _ int64, sub engine.Submission) (int64, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	f.nextID++
	f.subs = append(f.subs, sub)
	return f.nextID, nil
}

func (f *fakeRecorder) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRecorder) recorded() []engine.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Submission(nil), f.subs...)
}

type practiceFixture struct {
	svc      *PracticeService
	store    *repository.SessionStore
	mr       *miniredis.Miniredis
	papers   *fakePapers
	recorder *fakeRecorder
	tickers  *tickerSpy
}

func newPracticeFixture(t *testing.T, opts PracticeOptions) *practiceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &practiceFixture{
		store:    repository.NewSessionStore(rdb, time.Hour, zerolog.Nop()),
		mr:       mr,
		papers:   &fakePapers{questions: testQuestionSet(3)},
		recorder: &fakeRecorder{},
		tickers:  newTickerSpy(),
	}
	opts.TickerFactory = f.tickers.factory
	if opts.ExamMinutes == 0 {
		opts.ExamMinutes = 1
	}
	f.svc = NewPracticeService(f.store, f.papers, f.recorder, opts, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

func nextEvent(t *testing.T, v *Viewer) SessionEvent {
	t.Helper()
	select {
	case ev, ok := <-v.Events():
		if !ok {
			t.Fatal("viewer channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return SessionEvent{}
	}
}

const user = int64(42)

func startExam(t *testing.T, f *practiceFixture) *SessionView {
	t.Helper()
	v, err := f.svc.Start(context.Background(), user, &model.StartSessionRequest{Mode: "exam", PaperID: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return v
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestPracticeFullExamRun(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	ctx := context.Background()

	v := startExam(t, f)
	if v.Summary.Total != 3 || v.TimeRemaining != 60 || !v.IsTimerRunning {
		t.Fatalf("start view = %+v", v)
	}
	if v.Current == nil || v.Current.ID != 1 {
		t.Fatalf("current = %+v", v.Current)
	}

	if _, err := f.svc.SelectAnswer(ctx, user, 1, "a"); err != nil {
		t.Fatal(err)
	}
	v, err := f.svc.SelectAnswer(ctx, user, 2, "b")
	if err != nil {
		t.Fatal(err)
	}
	if v.Summary.Answered != 2 || v.Summary.Unanswered != 1 {
		t.Fatalf("summary = %+v", v.Summary)
	}

	res, err := f.svc.Submit(ctx, user)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != 33 || res.TotalQuestions != 3 || len(res.Responses) != 2 || res.AttemptID != 1 {
		t.Fatalf("result = %+v", res)
	}

	subs := f.recorder.recorded()
	if len(subs) != 1 || subs[0].PaperID == nil || *subs[0].PaperID != 1 || subs[0].Mode != engine.ModeExam {
		t.Fatalf("recorded = %+v", subs)
	}

	if _, err := f.svc.Get(ctx, user); !errors.Is(err, engine.ErrNoSession) {
		t.Fatalf("Get after submit: err = %v", err)
	}
	if f.mr.Exists(config.CacheKey.PracticeSessionKey(user)) {
		t.Fatal("stored session should be deleted after submit")
	}
}

func TestPracticeTimerFollowsViewers(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	ctx := context.Background()

	startExam(t, f)
	f.tickers.assertNone(t)

	viewer, err := f.svc.Attach(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, viewer); ev.Kind != EventState || ev.Session == nil {
		t.Fatalf("first event = %+v", ev)
	}
	tk := f.tickers.next(t)

	tk.ch <- time.Now()
	ev := nextEvent(t, viewer)
	if ev.Kind != EventTick || ev.Tick.TimeRemaining != 59 || ev.Tick.TimeDisplay != "00:59" {
		t.Fatalf("tick event = %+v", ev)
	}

	v, err := f.svc.Pause(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsPaused || v.IsTimerRunning || v.TimeRemaining != 59 {
		t.Fatalf("paused view = %+v", v)
	}
	if _, err := f.svc.Get(ctx, user); err != nil {
		t.Fatal(err)
	}
	if !tk.stopped.Load() {
		t.Fatal("pause must disarm the tick")
	}

	v, err = f.svc.Resume(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if v.IsPaused || !v.IsTimerRunning {
		t.Fatalf("resumed view = %+v", v)
	}
	tk2 := f.tickers.next(t)

	f.svc.Detach(viewer)
	for range viewer.Events() {
	}
	if _, err := f.svc.Get(ctx, user); err != nil {
		t.Fatal(err)
	}
	if !tk2.stopped.Load() {
		t.Fatal("last viewer leaving must disarm the tick")
	}
}

func TestPracticeAutoSubmitOnExpiry(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{AutoSubmitDelay: 5 * time.Millisecond, ViewerBuffer: 256})
	ctx := context.Background()

	startExam(t, f)
	if _, err := f.svc.SelectAnswer(ctx, user, 3, "a"); err != nil {
		t.Fatal(err)
	}
	viewer, err := f.svc.Attach(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	nextEvent(t, viewer)
	tk := f.tickers.next(t)

	for i := 59; i >= 0; i-- {
		tk.ch <- time.Now()
		ev := nextEvent(t, viewer)
		if ev.Kind != EventTick || ev.Tick.TimeRemaining != i {
			t.Fatalf("tick %d: event = %+v", i, ev)
		}
	}

	if ev := nextEvent(t, viewer); ev.Kind != EventTimeUp {
		t.Fatalf("want time_up, got %+v", ev)
	}
	var result *model.SubmitResult
	for result == nil {
		ev := nextEvent(t, viewer)
		switch ev.Kind {
		case EventState:
			if ev.Session == nil || !ev.Session.Submitting {
				t.Fatalf("state during auto-submit = %+v", ev.Session)
			}
		case EventSubmitted:
			result = ev.Result
		default:
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if result.Score != 33 || result.TimeSpent != 60 {
		t.Fatalf("auto-submit result = %+v", result)
	}
	if !tk.stopped.Load() {
		t.Fatal("expired timer must be disarmed")
	}
	if n := len(f.recorder.recorded()); n != 1 {
		t.Fatalf("recorded %d submissions, want exactly 1", n)
	}
}

func TestPracticeAnswersFreezeAtExpiry(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{AutoSubmitDelay: time.Hour, ViewerBuffer: 256})
	ctx := context.Background()

	startExam(t, f)
	if _, err := f.svc.SelectAnswer(ctx, user, 3, "a"); err != nil {
		t.Fatal(err)
	}
	viewer, err := f.svc.Attach(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	nextEvent(t, viewer)
	tk := f.tickers.next(t)
	for i := 0; i < 60; i++ {
		tk.ch <- time.Now()
		nextEvent(t, viewer)
	}
	if ev := nextEvent(t, viewer); ev.Kind != EventTimeUp {
		t.Fatalf("want time_up, got %+v", ev)
	}

	mutations := map[string]func() (*SessionView, error){
		"select": func() (*SessionView, error) { return f.svc.SelectAnswer(ctx, user, 1, "a") },
		"clear":  func() (*SessionView, error) { return f.svc.ClearAnswer(ctx, user, 3) },
		"mark":   func() (*SessionView, error) { return f.svc.ToggleMark(ctx, user, 2) },
	}
	for name, mutate := range mutations {
		if _, err := mutate(); !errors.Is(err, ErrTimeUp) {
			t.Errorf("%s after expiry: err = %v, want ErrTimeUp", name, err)
		}
	}
	if _, err := f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "next"}); err != nil {
		t.Fatalf("navigation after expiry: %v", err)
	}

	res, err := f.svc.Submit(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 33 {
		t.Fatalf("score = %d, want the answers present at expiry", res.Score)
	}
}

func TestPracticeSubmitInFlightGuard(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	f.recorder.gate = make(chan struct{})
	f.recorder.started = make(chan struct{}, 1)
	ctx := context.Background()

	startExam(t, f)

	type out struct {
		res *model.SubmitResult
		err error
	}
	first := make(chan out, 1)
	go func() {
		res, err := f.svc.Submit(ctx, user)
		first <- out{res, err}
	}()
	<-f.recorder.started

	if _, err := f.svc.Submit(ctx, user); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("second submit: err = %v", err)
	}
	if _, err := f.svc.SelectAnswer(ctx, user, 1, "a"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("select during submit: err = %v", err)
	}
	if err := f.svc.End(ctx, user); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("end during submit: err = %v", err)
	}
	v, err := f.svc.Get(ctx, user)
	if err != nil || !v.Submitting {
		t.Fatalf("Get during submit = %+v, %v", v, err)
	}

	close(f.recorder.gate)
	got := <-first
	if got.err != nil || got.res.Score != 0 {
		t.Fatalf("first submit = %+v, %v", got.res, got.err)
	}
}

func TestPracticeSubmitFailureKeepsSession(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	ctx := context.Background()

	startExam(t, f)
	if _, err := f.svc.SelectAnswer(ctx, user, 1, "a"); err != nil {
		t.Fatal(err)
	}

	f.recorder.setFail(errors.New("database down"))
	if _, err := f.svc.Submit(ctx, user); !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("submit: err = %v", err)
	}

	v, err := f.svc.Get(ctx, user)
	if err != nil {
		t.Fatalf("session lost after failed submit: %v", err)
	}
	if v.Submitting || v.Summary.Answered != 1 {
		t.Fatalf("view after failure = %+v", v)
	}

	f.recorder.setFail(nil)
	res, err := f.svc.Submit(ctx, user)
	if err != nil || res.Score != 33 {
		t.Fatalf("retry = %+v, %v", res, err)
	}
}

func TestPracticeSessionSurvivesRestart(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	ctx := context.Background()

	started := startExam(t, f)
	if _, err := f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "next"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ToggleMark(ctx, user, 2); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	again := NewPracticeService(f.store, f.papers, f.recorder, PracticeOptions{TickerFactory: f.tickers.factory}, zerolog.Nop())
	t.Cleanup(func() { _ = again.Shutdown(context.Background()) })

	v, err := again.Get(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if v.SessionID != started.SessionID || v.CurrentIndex != 1 || !v.Current.IsMarkedForReview {
		t.Fatalf("restored view = %+v", v)
	}
}

func TestPracticeModes(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{})
	ctx := context.Background()

	t.Run("browse reveals solutions and cannot submit", func(t *testing.T) {
		v, err := f.svc.Start(ctx, user, &model.StartSessionRequest{Mode: "browse", PaperID: 1})
		if err != nil {
			t.Fatal(err)
		}
		if v.IsTimerRunning || v.PlannedSeconds != 0 {
			t.Fatalf("browse view = %+v", v)
		}
		sol, err := f.svc.Solution(ctx, user, 2)
		if err != nil || sol.CorrectAnswer != "a" {
			t.Fatalf("solution = %+v, %v", sol, err)
		}
		if _, err := f.svc.Solution(ctx, user, 99); !errors.Is(err, engine.ErrInvalidArgument) {
			t.Fatalf("unknown question: err = %v", err)
		}
		if _, err := f.svc.Submit(ctx, user); !errors.Is(err, engine.ErrNotSubmittable) {
			t.Fatalf("browse submit: err = %v", err)
		}
	})

	t.Run("exam hides solutions", func(t *testing.T) {
		startExam(t, f)
		if _, err := f.svc.Solution(ctx, user, 1); !errors.Is(err, ErrSolutionUnavailable) {
			t.Fatalf("err = %v", err)
		}
		if _, err := f.svc.SelectAnswer(ctx, user, 99, "a"); !errors.Is(err, engine.ErrInvalidArgument) {
			t.Fatalf("unknown question select: err = %v", err)
		}
	})

	t.Run("navigation clamps", func(t *testing.T) {
		startExam(t, f)
		v, err := f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "previous"})
		if err != nil || v.CurrentIndex != 0 {
			t.Fatalf("previous at start = %+v, %v", v, err)
		}
		v, err = f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "goto", Index: 7})
		if err != nil || v.CurrentIndex != 0 {
			t.Fatalf("goto out of range = %+v, %v", v, err)
		}
		v, err = f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "goto", Index: 2})
		if err != nil || v.CurrentIndex != 2 {
			t.Fatalf("goto 2 = %+v, %v", v, err)
		}
		v, err = f.svc.Navigate(ctx, user, &model.NavigateRequest{Action: "next"})
		if err != nil || v.CurrentIndex != 2 {
			t.Fatalf("next at end = %+v, %v", v, err)
		}
	})

	t.Run("instant samples the bank", func(t *testing.T) {
		v, err := f.svc.Start(ctx, user, &model.StartSessionRequest{Mode: "instant", QuestionCount: 2, DurationMinutes: 5})
		if err != nil {
			t.Fatal(err)
		}
		if v.PaperID != 0 || v.Summary.Total != 2 || v.TimeRemaining != 300 {
			t.Fatalf("instant view = %+v", v)
		}
		res, err := f.svc.Submit(ctx, user)
		if err != nil {
			t.Fatal(err)
		}
		subs := f.recorder.recorded()
		last := subs[len(subs)-1]
		if last.PaperID != nil || last.Mode != engine.ModeInstant || res.TotalQuestions != 2 {
			t.Fatalf("instant submission = %+v", last)
		}
	})

	t.Run("unknown paper", func(t *testing.T) {
		if _, err := f.svc.Start(ctx, user, &model.StartSessionRequest{Mode: "exam", PaperID: 5}); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("end discards", func(t *testing.T) {
		startExam(t, f)
		if err := f.svc.End(ctx, user); err != nil {
			t.Fatal(err)
		}
		if err := f.svc.End(ctx, user); !errors.Is(err, engine.ErrNoSession) {
			t.Fatalf("second end: err = %v", err)
		}
		if _, err := f.svc.Pause(ctx, user); !errors.Is(err, engine.ErrNoSession) {
			t.Fatalf("pause without session: err = %v", err)
		}
	})
}

func TestPracticeIdleRunnerIsEvicted(t *testing.T) {
	f := newPracticeFixture(t, PracticeOptions{IdleTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	started := startExam(t, f)

	deadline := time.Now().Add(2 * time.Second)
	for f.svc.ActiveRunners() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle runner was not evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	v, err := f.svc.Get(ctx, user)
	if err != nil || v.SessionID != started.SessionID {
		t.Fatalf("reloaded session = %+v, %v", v, err)
	}
}
