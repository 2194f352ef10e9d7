package queue

import (
	"context"
	"sync"

	"github.com/Iron-Ham/gavel/internal/review"
)

// Future is the handle for a submitted job's eventual result. It
// resolves exactly once; later resolutions are discarded.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result *review.StructuredReview
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(result *review.StructuredReview, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the job resolves or ctx is done. Waiting is
// re-entrant: every caller observes the same result.
func (f *Future) Wait(ctx context.Context) (*review.StructuredReview, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether the future has already resolved.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
