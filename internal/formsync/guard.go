package formsync

import (
	"context"
	"sync"
)

// Guard admits at most one in-progress submission per questionnaire key.
// A second caller for the same key waits until the first releases; it
// does not share the first caller's result.
//
// Thread-safety: Guard is safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done. The returned release
// function must be called exactly once; extra calls are no-ops.
func (g *Guard) Acquire(ctx context.Context, key string) (release func(), err error) {
	for {
		g.mu.Lock()
		busy, ok := g.inflight[key]
		if !ok {
			done := make(chan struct{})
			g.inflight[key] = done
			g.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					g.mu.Lock()
					delete(g.inflight, key)
					g.mu.Unlock()
					close(done)
				})
			}, nil
		}
		g.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Busy reports whether a submission holds key.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[key]
	return ok
}
