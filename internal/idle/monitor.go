// Package idle detects user inactivity on a questionnaire page.
//
// A Monitor is armed when a page becomes active and disarmed when the
// user leaves it. When no activity is recorded for the configured
// timeout the monitor fires, and the flow controller decides between
// continuing (re-arm) and restarting the questionnaire.
//
// The monitor is a pure timer/event source. It never cancels work in
// flight: a fire during a pending submission only tells the controller
// to show the idle prompt once that submission settles.
package idle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the monitor lifecycle state.
type State int

const (
	// Disarmed: no session; activity is ignored.
	Disarmed State = iota
	// Armed: a session is running and counting inactivity.
	Armed
	// Fired: the timeout elapsed; waiting for Continue or Stop.
	Fired
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disarmed:
		return "disarmed"
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTimeout is returned by Start for a non-positive timeout.
var ErrInvalidTimeout = errors.New("idle timeout must be positive")

// Event describes one idle fire.
type Event struct {
	// LastActivity is the time of the last recorded activity.
	LastActivity time.Time

	// FiredAt is the clock time at which the timeout was detected.
	FiredAt time.Time

	// Timeout is the configured inactivity limit.
	Timeout time.Duration
}

// Idle returns how long the user had been inactive when the monitor fired.
func (e Event) Idle() time.Duration {
	return e.FiredAt.Sub(e.LastActivity)
}

// FireFunc receives idle fires. It runs on the timer goroutine and
// outside the monitor lock, so it may call back into the monitor.
type FireFunc func(Event)

// Monitor watches for inactivity. Only one session exists at a time:
// starting a new one replaces the previous session.
//
// Thread-safety: all methods are safe for concurrent use.
type Monitor struct {
	clock  Clock
	onFire FireFunc

	mu           sync.Mutex
	state        State
	timeout      time.Duration
	lastActivity time.Time
	timer        Timer
	generation   uint64 // bumped per session; stale timers compare against it
}

// NewMonitor creates a disarmed monitor. A nil clock uses SystemClock.
func NewMonitor(clock Clock, onFire FireFunc) *Monitor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Monitor{
		clock:  clock,
		onFire: onFire,
	}
}

// Start arms a new session with the given timeout, recording now as the
// last activity. A session already armed or fired is replaced.
func (m *Monitor) Start(timeout time.Duration) error {
	if timeout <= 0 {
		return ErrInvalidTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.generation++
	m.timeout = timeout
	m.lastActivity = m.clock.Now()
	m.state = Armed
	m.scheduleLocked(timeout)

	slog.Debug("idle monitor armed", "timeout", timeout)
	return nil
}

// Activity records user activity. While Armed it moves the inactivity
// deadline; in any other state it is ignored.
func (m *Monitor) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Armed {
		return
	}
	m.lastActivity = m.clock.Now()
}

// Continue re-arms a fired monitor with the same timeout, counting from
// now. It reports false when the monitor was not Fired.
func (m *Monitor) Continue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Fired {
		return false
	}
	m.generation++
	m.lastActivity = m.clock.Now()
	m.state = Armed
	m.scheduleLocked(m.timeout)

	slog.Debug("idle monitor continued", "timeout", m.timeout)
	return true
}

// Stop disarms the monitor and cancels any pending timeout check.
// Always permitted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.generation++
	m.state = Disarmed
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastActivity returns the time of the last recorded activity.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// scheduleLocked arranges a check after d for the current generation.
func (m *Monitor) scheduleLocked(d time.Duration) {
	gen := m.generation
	m.timer = m.clock.AfterFunc(d, func() { m.check(gen) })
}

// check runs when a deadline passes. Activity may have moved the
// deadline since the timer was set, in which case it reschedules for
// the remaining time instead of firing.
func (m *Monitor) check(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != Armed {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	elapsed := now.Sub(m.lastActivity)
	if elapsed < m.timeout {
		m.scheduleLocked(m.timeout - elapsed)
		m.mu.Unlock()
		return
	}

	m.state = Fired
	m.timer = nil
	ev := Event{
		LastActivity: m.lastActivity,
		FiredAt:      now,
		Timeout:      m.timeout,
	}
	onFire := m.onFire
	m.mu.Unlock()

	slog.Info("idle timeout", "idle", ev.Idle(), "timeout", ev.Timeout)
	if onFire != nil {
		onFire(ev)
	}
}
