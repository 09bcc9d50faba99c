package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/seantiz/threadbench/internal/model"
)

// Future is the pending result of a submitted task.
type Future struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelCauseFunc

	result model.WorkResult
	err    error
}

func newFuture(cancel context.CancelCauseFunc) *Future {
	return &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (f *Future) complete(res model.WorkResult, err error) {
	f.once.Do(func() {
		f.result, f.err = res, err
		close(f.done)
	})
}

// Done is closed once the future has resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx ends. When ctx ends first the
// task is cancelled and Wait returns an error matching model.ErrInterrupted.
func (f *Future) Wait(ctx context.Context) (model.WorkResult, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		cause := context.Cause(ctx)
		f.cancel(cause)
		f.complete(model.WorkResult{}, fmt.Errorf("%w: %w", model.ErrInterrupted, cause))
	}
	<-f.done
	return f.result, f.err
}

// Cancel interrupts the task. A queued task fails as soon as a worker picks
// it up; a running task sees its context cancelled.
func (f *Future) Cancel() {
	f.cancel(context.Canceled)
}

// Result returns the outcome without blocking. ok is false while the task is
// still pending.
func (f *Future) Result() (res model.WorkResult, ok bool, err error) {
	select {
	case <-f.done:
		return f.result, true, f.err
	default:
		return model.WorkResult{}, false, nil
	}
}
