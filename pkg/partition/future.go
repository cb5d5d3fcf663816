package partition

import (
	"context"
	"sync"
)

// future is a hand-rolled single-assignment completion signal returned by
// the actor methods whose callers await completion (Start, CloseAsync,
// PauseProcessing), backed by
// nothing more than "complete exactly once" semantics. It follows the
// plain channel-plus-sync.Once idiom used throughout this module's
// sidecar Start/Close pairs rather than pulling in a third-party promise
// library.
type future struct {
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
	err     error
	waiters []func(error)
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// complete resolves the future exactly once; subsequent calls are no-ops,
// which is what makes closeAsync's "N invocations share one completion"
// property hold.
func (f *future) complete(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		waiters := f.waiters
		f.waiters = nil
		f.mu.Unlock()
		close(f.done)
		for _, w := range waiters {
			w(err)
		}
	})
}

// then registers a continuation to run when the future resolves, called
// inline if it already has. It never blocks, so it is safe to call from
// inside the actor's task loop.
func (f *future) then(cb func(error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		cb(f.err)
		return
	default:
	}
	f.waiters = append(f.waiters, cb)
	f.mu.Unlock()
}

// Wait blocks the calling goroutine until the future resolves or ctx is
// done. Intended for callers outside the actor's own task loop.
func (f *future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
