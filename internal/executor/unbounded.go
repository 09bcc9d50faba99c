package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/threadbench/internal/model"
)

// DefaultVirtualPrefix names the goroutines started by Unbounded.
const DefaultVirtualPrefix = "virtual-"

// Unbounded starts one goroutine per submitted task. The only limit on the
// number of concurrently blocked tasks is available memory.
type Unbounded struct {
	name   string
	prefix string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	next      atomic.Uint64
	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// Compile-time interface satisfaction check.
var _ Strategy = (*Unbounded)(nil)

// NewUnbounded creates an unbounded executor. An empty name defaults to
// "unbounded".
func NewUnbounded(name string, logger *slog.Logger) *Unbounded {
	if name == "" {
		name = KindUnbounded
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	initMetrics(name)
	return &Unbounded{
		name:   name,
		prefix: DefaultVirtualPrefix,
		logger: logger.With("executor", name),
	}
}

// Submit starts task on a new goroutine. It only fails after Shutdown.
func (u *Unbounded) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.closed {
		u.rejected.Add(1)
		tasksRejected.WithLabelValues(u.name).Inc()
		return nil, ErrPoolClosed
	}

	u.submitted.Add(1)
	tasksSubmitted.WithLabelValues(u.name).Inc()

	j := newJob(ctx, task)
	w := Worker{
		Name:        fmt.Sprintf("%s%d", u.prefix, u.next.Add(1)),
		Lightweight: true,
	}

	u.wg.Go(func() {
		n := u.active.Add(1)
		busyWorkers.WithLabelValues(u.name).Set(float64(n))
		poolWorkers.WithLabelValues(u.name).Set(float64(n))
		queueWait.WithLabelValues(u.name).Observe(time.Since(j.enqueued).Seconds())
		start := time.Now()

		failed := execute(w, j)

		taskDuration.WithLabelValues(u.name).Observe(time.Since(start).Seconds())
		n = u.active.Add(-1)
		busyWorkers.WithLabelValues(u.name).Set(float64(n))
		poolWorkers.WithLabelValues(u.name).Set(float64(n))
		tasksCompleted.WithLabelValues(u.name, outcome(failed)).Inc()
		u.completed.Add(1)
		if failed {
			u.failed.Add(1)
		}
	})

	return j.future, nil
}

// Capabilities reports that every task runs on a lightweight worker.
func (u *Unbounded) Capabilities() Capabilities {
	return Capabilities{
		Kind:        KindUnbounded,
		Label:       model.LabelUnbounded,
		Lightweight: true,
	}
}

// Stats returns current counters. Workers and Busy are both the number of
// running tasks since goroutines exist only while they work.
func (u *Unbounded) Stats() Stats {
	active := int(u.active.Load())
	return Stats{
		Workers:   active,
		Busy:      active,
		Submitted: u.submitted.Load(),
		Completed: u.completed.Load(),
		Failed:    u.failed.Load(),
		Rejected:  u.rejected.Load(),
	}
}

// Shutdown stops accepting tasks and waits for running ones up to ctx.
func (u *Unbounded) Shutdown(ctx context.Context) error {
	u.mu.Lock()
	if !u.closed {
		u.logger.Info("shutting down executor", "active", u.active.Load())
	}
	u.closed = true
	u.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown %s: %w", u.name, ctx.Err())
	}
}
