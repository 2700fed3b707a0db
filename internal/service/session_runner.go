package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/model"
)

// errRunnerGone means the runner exited before accepting a command.
var errRunnerGone = errors.New("session runner stopped")

// EventKind names a server push to session viewers.
type EventKind string

const (
	EventState        EventKind = "state"
	EventTick         EventKind = "tick"
	EventTimeUp       EventKind = "time_up"
	EventSubmitted    EventKind = "submitted"
	EventSubmitFailed EventKind = "submit_failed"
)

// SessionEvent is pushed to every attached viewer. A state event with a nil
// Session means the session ended.
type SessionEvent struct {
	Kind    EventKind
	Session *SessionView
	Tick    *TickView
	Result  *model.SubmitResult
	Err     error
}

// Viewer is one live connection watching a user's session.
type Viewer struct {
	id     uint64
	runner *sessionRunner
	events chan SessionEvent
}

// Events is closed when the viewer is detached or the runner stops.
func (v *Viewer) Events() <-chan SessionEvent {
	return v.events
}

type commandFunc func(r *sessionRunner) (any, error)

type command struct {
	fn    commandFunc
	reply chan commandReply
}

type commandReply struct {
	value any
	err   error
}

type submitReply struct {
	result *model.SubmitResult
	err    error
}

type submitOutcome struct {
	sub       engine.Submission
	attemptID int64
	err       error
}

// sessionRunner owns one user's engine.Controller. Only its goroutine
// touches the controller, the timer and the viewer set.
type sessionRunner struct {
	userID int64
	svc    *PracticeService
	log    zerolog.Logger

	ctrl  *engine.Controller
	timer *engine.Timer
	cmds  chan command
	done  chan struct{}

	viewers    map[uint64]*Viewer
	nextViewer uint64

	submitting bool
	submitDone chan submitOutcome
	waiters    []chan submitReply

	grace  *time.Timer
	graceC <-chan time.Time
	idle   *time.Timer
}

func newSessionRunner(svc *PracticeService, userID int64, sess *engine.Session) *sessionRunner {
	log := svc.log.With().Int64("user_id", userID).Logger()
	ctrl := engine.NewController(log)
	if sess != nil {
		ctrl = engine.Restore(sess, log)
	}
	return &sessionRunner{
		userID:     userID,
		svc:        svc,
		log:        log,
		ctrl:       ctrl,
		timer:      engine.NewTimer(svc.opts.TickerFactory, svc.opts.TickInterval),
		cmds:       make(chan command),
		done:       make(chan struct{}),
		viewers:    make(map[uint64]*Viewer),
		submitDone: make(chan submitOutcome, 1),
	}
}

// do hands fn to the runner goroutine and waits for its reply.
func (r *sessionRunner) do(ctx context.Context, fn commandFunc) (any, error) {
	cmd := command{fn: fn, reply: make(chan commandReply, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return nil, errRunnerGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	rep := <-cmd.reply
	return rep.value, rep.err
}

func (r *sessionRunner) run(ctx context.Context) {
	defer r.svc.wg.Done()
	defer close(r.done)
	defer r.closeViewers()
	defer r.timer.Disarm()
	defer r.cancelGrace()

	var idleC <-chan time.Time
	if r.svc.opts.IdleTimeout > 0 {
		r.idle = time.NewTimer(r.svc.opts.IdleTimeout)
		defer r.idle.Stop()
		idleC = r.idle.C
	}

	r.log.Debug().Bool("restored", r.ctrl.Active()).Msg("Session runner started")

	for {
		select {
		case <-ctx.Done():
			if r.submitting {
				r.finishSubmit(<-r.submitDone)
			}
			r.svc.forget(r)
			return

		case cmd := <-r.cmds:
			v, err := cmd.fn(r)
			cmd.reply <- commandReply{value: v, err: err}
			r.syncTimer()
			r.touch()

		case <-r.timer.C():
			r.tick()

		case <-r.graceC:
			r.grace, r.graceC = nil, nil
			r.log.Info().Msg("Time is up, auto-submitting")
			if err := r.beginSubmit(); err != nil {
				r.log.Warn().Err(err).Msg("Auto-submit not started")
			}

		case out := <-r.submitDone:
			r.finishSubmit(out)
			r.syncTimer()
			r.touch()

		case <-idleC:
			if len(r.viewers) == 0 && !r.submitting && r.graceC == nil {
				r.svc.forget(r)
				r.log.Debug().Msg("Session runner evicted")
				return
			}
			r.idle.Reset(r.svc.opts.IdleTimeout)
		}
	}
}

func (r *sessionRunner) touch() {
	if r.idle != nil {
		r.idle.Reset(r.svc.opts.IdleTimeout)
	}
}

// syncTimer arms the tick exactly while the countdown runs, someone is
// watching and no submission is in flight.
func (r *sessionRunner) syncTimer() {
	s := r.ctrl.Session()
	if s != nil && s.IsTimerRunning && len(r.viewers) > 0 && !r.submitting {
		r.timer.Arm()
		return
	}
	r.timer.Disarm()
}

func (r *sessionRunner) view() *SessionView {
	return buildView(r.ctrl, r.submitting, r.log)
}

func (r *sessionRunner) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), r.svc.opts.StoreTimeout)
	defer cancel()

	var err error
	if s := r.ctrl.Session(); s != nil {
		err = r.svc.store.Save(ctx, r.userID, s)
	} else {
		err = r.svc.store.Delete(ctx, r.userID)
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("Session persistence failed")
	}
}

func (r *sessionRunner) broadcast(ev SessionEvent) {
	for _, v := range r.viewers {
		r.push(v, ev)
	}
}

// push never blocks the runner; a full viewer buffer drops the event.
func (r *sessionRunner) push(v *Viewer, ev SessionEvent) {
	select {
	case v.events <- ev:
	default:
		r.log.Warn().Str("event", string(ev.Kind)).Msg("Viewer lagging, event dropped")
	}
}

func (r *sessionRunner) closeViewers() {
	for id, v := range r.viewers {
		close(v.events)
		delete(r.viewers, id)
	}
}

// ─── Commands ───────────────────────────────────────────────────────

func (r *sessionRunner) start(paperID int64, questions []engine.Question, mode engine.Mode, minutes int) (*SessionView, error) {
	if r.submitting {
		return nil, ErrSubmissionInFlight
	}
	if err := r.ctrl.StartSession(paperID, questions, mode, minutes); err != nil {
		return nil, err
	}
	r.cancelGrace()
	r.persist()

	s := r.ctrl.Session()
	r.log.Info().
		Str("session_id", s.ID.String()).
		Str("mode", string(mode)).
		Int64("paper_id", paperID).
		Int("questions", len(questions)).
		Msg("Practice session started")

	v := r.view()
	r.broadcast(SessionEvent{Kind: EventState, Session: v})
	return v, nil
}

func (r *sessionRunner) end() error {
	if r.submitting {
		return ErrSubmissionInFlight
	}
	if !r.ctrl.Active() {
		return engine.ErrNoSession
	}
	r.ctrl.EndSession()
	r.cancelGrace()
	r.persist()
	r.broadcast(SessionEvent{Kind: EventState})
	return nil
}

// mutate applies fn to the live session, persists it and pushes the new
// state to viewers.
func (r *sessionRunner) mutate(fn func(c *engine.Controller) error) (*SessionView, error) {
	if r.submitting {
		return nil, ErrSubmissionInFlight
	}
	if !r.ctrl.Active() {
		return nil, engine.ErrNoSession
	}
	if err := fn(r.ctrl); err != nil {
		return nil, err
	}
	r.persist()
	v := r.view()
	r.broadcast(SessionEvent{Kind: EventState, Session: v})
	return v, nil
}

// mutateAnswer is mutate for answer state, which freezes once a timed
// session expires so the auto-submit scores what was there at zero.
func (r *sessionRunner) mutateAnswer(fn func(c *engine.Controller) error) (*SessionView, error) {
	if r.ctrl.Expired() {
		return nil, ErrTimeUp
	}
	return r.mutate(fn)
}

func (r *sessionRunner) attach() (*Viewer, error) {
	if !r.ctrl.Active() {
		return nil, engine.ErrNoSession
	}
	r.nextViewer++
	v := &Viewer{id: r.nextViewer, runner: r, events: make(chan SessionEvent, r.svc.opts.ViewerBuffer)}
	r.viewers[v.id] = v
	r.push(v, SessionEvent{Kind: EventState, Session: r.view()})

	if r.ctrl.Expired() && !r.submitting {
		r.push(v, SessionEvent{Kind: EventTimeUp, Tick: tickView(r.ctrl.Session())})
		r.scheduleAutoSubmit()
	}
	r.log.Debug().Int("viewers", len(r.viewers)).Msg("Viewer attached")
	return v, nil
}

func (r *sessionRunner) detach(id uint64) {
	v, ok := r.viewers[id]
	if !ok {
		return
	}
	delete(r.viewers, id)
	close(v.events)
	r.log.Debug().Int("viewers", len(r.viewers)).Msg("Viewer detached")
}

// ─── Timer ──────────────────────────────────────────────────────────

func (r *sessionRunner) tick() {
	if !r.ctrl.UpdateTimer() {
		r.syncTimer()
		return
	}
	r.persist()
	r.broadcast(SessionEvent{Kind: EventTick, Tick: tickView(r.ctrl.Session())})

	if r.ctrl.Expired() {
		r.broadcast(SessionEvent{Kind: EventTimeUp, Tick: tickView(r.ctrl.Session())})
		r.scheduleAutoSubmit()
	}
	r.syncTimer()
}

// scheduleAutoSubmit submits once after the time-up notice has been shown.
func (r *sessionRunner) scheduleAutoSubmit() {
	if r.graceC != nil || r.submitting {
		return
	}
	r.grace = time.NewTimer(r.svc.opts.AutoSubmitDelay)
	r.graceC = r.grace.C
}

func (r *sessionRunner) cancelGrace() {
	if r.grace == nil {
		return
	}
	r.grace.Stop()
	r.grace, r.graceC = nil, nil
}

// ─── Submission ─────────────────────────────────────────────────────

func (r *sessionRunner) submit() (chan submitReply, error) {
	if err := r.beginSubmit(); err != nil {
		return nil, err
	}
	wait := make(chan submitReply, 1)
	r.waiters = append(r.waiters, wait)
	return wait, nil
}

// beginSubmit scores the session and records it in the background. The
// session is not touched until the outcome arrives.
func (r *sessionRunner) beginSubmit() error {
	if r.submitting {
		return ErrSubmissionInFlight
	}
	sub, err := r.ctrl.BuildSubmission(r.svc.now())
	if err != nil {
		return err
	}

	r.submitting = true
	r.cancelGrace()
	r.timer.Disarm()

	recorder := r.svc.attempts
	timeout := r.svc.opts.SubmitTimeout
	userID := r.userID
	done := r.submitDone
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, err := recorder.Record(ctx, userID, sub)
		done <- submitOutcome{sub: sub, attemptID: id, err: err}
	}()

	r.broadcast(SessionEvent{Kind: EventState, Session: r.view()})
	return nil
}

func (r *sessionRunner) finishSubmit(out submitOutcome) {
	r.submitting = false

	if out.err != nil {
		err := fmt.Errorf("%w: %v", ErrSubmissionFailed, out.err)
		r.log.Error().Err(out.err).Msg("Submission failed, session kept")
		r.broadcast(SessionEvent{Kind: EventSubmitFailed, Session: r.view(), Err: err})
		r.notify(submitReply{err: err})
		return
	}

	res := &model.SubmitResult{
		AttemptID:      out.attemptID,
		Score:          out.sub.Score,
		TotalQuestions: out.sub.TotalQuestions,
		TimeSpent:      out.sub.TimeSpentSeconds,
		Responses:      out.sub.Responses,
	}
	r.ctrl.EndSession()
	r.persist()

	r.log.Info().
		Int64("attempt_id", out.attemptID).
		Int("score", res.Score).
		Msg("Practice session submitted")

	r.broadcast(SessionEvent{Kind: EventSubmitted, Result: res})
	r.notify(submitReply{result: res})
}

func (r *sessionRunner) notify(rep submitReply) {
	for _, w := range r.waiters {
		w <- rep
	}
	r.waiters = nil
}
