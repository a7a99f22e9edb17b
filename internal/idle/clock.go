package idle

import "time"

// Timer is a pending callback that can be cancelled.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time so the monitor can be driven by a manual
// clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the production Clock backed by the time package.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f on its own goroutine after d.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
