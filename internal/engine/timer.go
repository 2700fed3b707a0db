package engine

import (
	"fmt"
	"time"
)

// Ticker is a cancelable periodic tick source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the wall-clock TickerFactory.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Timer owns at most one live ticker. The zero value is unusable; use NewTimer.
type Timer struct {
	factory  TickerFactory
	interval time.Duration
	ticker   Ticker
}

// NewTimer returns a disarmed timer. A nil factory means RealTicker.
func NewTimer(factory TickerFactory, interval time.Duration) *Timer {
	if factory == nil {
		factory = RealTicker
	}
	return &Timer{factory: factory, interval: interval}
}

// Arm starts ticking. Arming an armed timer is a no-op.
func (t *Timer) Arm() {
	if t.ticker != nil {
		return
	}
	t.ticker = t.factory(t.interval)
}

// Disarm stops ticking. Safe to call repeatedly.
func (t *Timer) Disarm() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
}

// Armed reports whether a ticker is live.
func (t *Timer) Armed() bool {
	return t.ticker != nil
}

// C is the tick channel, or nil when disarmed so a select case never fires.
func (t *Timer) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.C()
}

// FormatRemaining renders seconds as HH:MM:SS from one hour up, else MM:SS.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// TimerLevel is a presentation hint for the remaining time.
type TimerLevel string

const (
	LevelNormal  TimerLevel = "normal"
	LevelWarning TimerLevel = "warning"
	LevelDanger  TimerLevel = "danger"
)

// Level classifies remaining against total: above 50% normal, above 20%
// warning, otherwise danger.
func Level(remaining, total int) TimerLevel {
	if total <= 0 {
		return LevelNormal
	}
	pct := float64(remaining) / float64(total) * 100
	switch {
	case pct > 50:
		return LevelNormal
	case pct > 20:
		return LevelWarning
	default:
		return LevelDanger
	}
}
