package idle_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/idle"
	"github.com/roach88/formsync/internal/testutil"
)

const timeout = 1000 * time.Millisecond

type fireRecorder struct {
	mu     sync.Mutex
	events []idle.Event
}

func (r *fireRecorder) record(ev idle.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newMonitor(t *testing.T) (*idle.Monitor, *testutil.ManualClock, *fireRecorder) {
	t.Helper()
	clock := testutil.NewManualClock(time.Time{})
	rec := &fireRecorder{}
	return idle.NewMonitor(clock, rec.record), clock, rec
}

func TestMonitor_StartsDisarmed(t *testing.T) {
	m, _, _ := newMonitor(t)
	assert.Equal(t, idle.Disarmed, m.State())
}

func TestMonitor_StartArms(t *testing.T) {
	m, clock, _ := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	assert.Equal(t, idle.Armed, m.State())
	assert.Equal(t, clock.Now(), m.LastActivity())
}

func TestMonitor_StartRejectsNonPositiveTimeout(t *testing.T) {
	m, _, _ := newMonitor(t)
	assert.ErrorIs(t, m.Start(0), idle.ErrInvalidTimeout)
	assert.ErrorIs(t, m.Start(-time.Second), idle.ErrInvalidTimeout)
	assert.Equal(t, idle.Disarmed, m.State())
}

func TestMonitor_FiresAfterTimeout(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	clock.Advance(1001 * time.Millisecond)

	assert.Equal(t, idle.Fired, m.State())
	require.Equal(t, 1, rec.count())
	ev := rec.events[0]
	assert.Equal(t, testutil.Epoch, ev.LastActivity)
	assert.Equal(t, timeout, ev.Timeout)
	assert.GreaterOrEqual(t, ev.Idle(), timeout)
}

func TestMonitor_FiresAtExactTimeout(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	clock.Advance(timeout - time.Millisecond)
	assert.Equal(t, idle.Armed, m.State())

	clock.Advance(time.Millisecond)

	assert.Equal(t, idle.Fired, m.State())
	require.Equal(t, 1, rec.count())
	assert.Equal(t, timeout, rec.events[0].Idle())
}

func TestMonitor_DoesNotFireBeforeTimeout(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	clock.Advance(999 * time.Millisecond)

	assert.Equal(t, idle.Armed, m.State())
	assert.Equal(t, 0, rec.count())
}

func TestMonitor_ActivityResetsClock(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	clock.Advance(600 * time.Millisecond)
	m.Activity()
	assert.Equal(t, testutil.Epoch.Add(600*time.Millisecond), m.LastActivity())

	// 1100ms since start but only 500ms since the activity.
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, idle.Armed, m.State())
	assert.Equal(t, 0, rec.count())

	// 1001ms since the activity.
	clock.Advance(501 * time.Millisecond)
	assert.Equal(t, idle.Fired, m.State())
	require.Equal(t, 1, rec.count())
	assert.Equal(t, testutil.Epoch.Add(600*time.Millisecond), rec.events[0].LastActivity)
}

func TestMonitor_ActivityIgnoredWhenNotArmed(t *testing.T) {
	m, clock, _ := newMonitor(t)
	clock.Advance(time.Second)
	m.Activity()
	assert.True(t, m.LastActivity().IsZero())
	assert.Equal(t, idle.Disarmed, m.State())
}

func TestMonitor_FiresOnlyOnce(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))

	clock.Advance(5 * timeout)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, idle.Fired, m.State())
}

func TestMonitor_ContinueRearms(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))
	clock.Advance(2 * timeout)
	require.Equal(t, idle.Fired, m.State())

	assert.True(t, m.Continue())
	assert.Equal(t, idle.Armed, m.State())
	assert.Equal(t, clock.Now(), m.LastActivity())

	clock.Advance(timeout + time.Millisecond)
	assert.Equal(t, idle.Fired, m.State())
	assert.Equal(t, 2, rec.count())
}

func TestMonitor_ContinueOnlyFromFired(t *testing.T) {
	m, _, _ := newMonitor(t)
	assert.False(t, m.Continue())

	require.NoError(t, m.Start(timeout))
	assert.False(t, m.Continue())
	assert.Equal(t, idle.Armed, m.State())
}

func TestMonitor_StopCancelsPendingTimeout(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))
	m.Stop()

	clock.Advance(10 * timeout)
	assert.Equal(t, idle.Disarmed, m.State())
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 0, clock.Pending())
}

func TestMonitor_StopFromFired(t *testing.T) {
	m, clock, _ := newMonitor(t)
	require.NoError(t, m.Start(timeout))
	clock.Advance(2 * timeout)

	m.Stop()
	assert.Equal(t, idle.Disarmed, m.State())
}

func TestMonitor_StartReplacesArmedSession(t *testing.T) {
	m, clock, rec := newMonitor(t)
	require.NoError(t, m.Start(timeout))
	clock.Advance(800 * time.Millisecond)

	// New page: previous session is dropped, not stacked.
	require.NoError(t, m.Start(2 * timeout))
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, idle.Armed, m.State())
	assert.Equal(t, 0, rec.count())

	clock.Advance(501 * time.Millisecond)
	assert.Equal(t, idle.Fired, m.State())
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 2*timeout, rec.events[0].Timeout)
}

func TestMonitor_CallbackMayReenterMonitor(t *testing.T) {
	clock := testutil.NewManualClock(time.Time{})
	var m *idle.Monitor
	fires := 0
	m = idle.NewMonitor(clock, func(idle.Event) {
		fires++
		m.Continue()
	})
	require.NoError(t, m.Start(timeout))

	clock.Advance(3*timeout + time.Millisecond)
	assert.Equal(t, 3, fires)
	assert.Equal(t, idle.Armed, m.State())
}

func TestMonitor_NilCallback(t *testing.T) {
	clock := testutil.NewManualClock(time.Time{})
	m := idle.NewMonitor(clock, nil)
	require.NoError(t, m.Start(timeout))

	clock.Advance(2 * timeout)
	assert.Equal(t, idle.Fired, m.State())
}

func TestMonitor_SystemClock(t *testing.T) {
	fired := make(chan idle.Event, 1)
	m := idle.NewMonitor(nil, func(ev idle.Event) { fired <- ev })
	require.NoError(t, m.Start(20*time.Millisecond))
	defer m.Stop()

	select {
	case ev := <-fired:
		assert.Equal(t, 20*time.Millisecond, ev.Timeout)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not fire")
	}
	assert.Equal(t, idle.Fired, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disarmed", idle.Disarmed.String())
	assert.Equal(t, "armed", idle.Armed.String())
	assert.Equal(t, "fired", idle.Fired.String())
	assert.Equal(t, "State(7)", idle.State(7).String())
}
