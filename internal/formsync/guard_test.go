package formsync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/formsync"
)

func TestGuard_SecondAcquireWaits(t *testing.T) {
	g := formsync.NewGuard()
	release, err := g.Acquire(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, g.Busy("q"))

	acquired := make(chan struct{})
	go func() {
		r, err := g.Acquire(context.Background(), "q")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for release")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded")
	}
}

func TestGuard_KeysAreIndependent(t *testing.T) {
	g := formsync.NewGuard()
	r1, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := g.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	g := formsync.NewGuard()
	release, err := g.Acquire(context.Background(), "q")
	require.NoError(t, err)

	release()
	release()
	assert.False(t, g.Busy("q"))

	r, err := g.Acquire(context.Background(), "q")
	require.NoError(t, err)
	r()
}

func TestGuard_CanceledContext(t *testing.T) {
	g := formsync.NewGuard()
	release, err := g.Acquire(context.Background(), "q")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}
