package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/formsync/internal/idle"
)

// ManualClock is an idle.Clock whose time only moves when the test says so.
//
// Timers fire synchronously inside Advance, in deadline order, on the
// calling goroutine. Callbacks run without the clock lock held, so they
// may read the clock and schedule new timers; timers scheduled within
// the advanced window fire in the same Advance call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	f        func()
	done     bool
}

// Epoch is the default start time of a ManualClock.
var Epoch = time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)

// NewManualClock creates a clock set to start. A zero start uses Epoch.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at now+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) idle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer. Reports false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing every timer due on the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// popDueLocked removes and returns the earliest live timer due by target.
func (c *ManualClock) popDueLocked(target time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}

	t := c.timers[0]
	t.done = true
	c.timers = c.timers[1:]
	return t
}
