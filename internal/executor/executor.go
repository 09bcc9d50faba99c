package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/threadbench/internal/model"
)

// Strategy kinds reported in Capabilities.
const (
	KindBounded   = "bounded"
	KindUnbounded = "unbounded"
)

// ErrPoolClosed is returned by Submit after Shutdown has started. It matches
// model.ErrRejected.
var ErrPoolClosed = fmt.Errorf("%w: executor is shut down", model.ErrRejected)

// ErrNilTask is returned when Submit is called without a task.
var ErrNilTask = errors.New("executor: nil task")

// Task is a unit of work run by a Strategy. The context carries the identity
// of the worker running it (see WorkerFrom) and is cancelled when the
// submitter cancels or the future is cancelled.
type Task func(ctx context.Context) (model.WorkResult, error)

// Strategy is the contract shared by all concurrency substrates.
type Strategy interface {
	// Submit hands the task to the substrate. It returns a Future unless the
	// substrate refused the task, in which case the error matches
	// model.ErrRejected or, for a blocking submit abandoned by its caller,
	// model.ErrInterrupted.
	Submit(ctx context.Context, task Task) (*Future, error)

	// Capabilities describes how the substrate is configured.
	Capabilities() Capabilities

	// Stats returns a point-in-time snapshot of the substrate's counters.
	Stats() Stats

	// Shutdown stops accepting tasks and waits for accepted ones to finish.
	Shutdown(ctx context.Context) error
}

// Capabilities describes a strategy's configuration.
type Capabilities struct {
	Kind          string `json:"kind"`
	Label         string `json:"label"`
	Lightweight   bool   `json:"lightweight"`
	CoreSize      int    `json:"core_size,omitempty"`
	MaxSize       int    `json:"max_size,omitempty"`
	QueueCapacity int    `json:"queue_capacity,omitempty"`
	Policy        Policy `json:"policy,omitempty"`
}

// Stats is a snapshot of a strategy's counters. Submitted counts admitted
// tasks only; a task refused for any reason counts as Rejected instead.
type Stats struct {
	Workers   int    `json:"workers"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

// Worker identifies the execution context running a task.
type Worker struct {
	Name        string
	Lightweight bool
}

type workerKey struct{}

// WithWorker returns a context carrying w.
func WithWorker(ctx context.Context, w Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the worker stored in ctx, or a worker named "unknown".
func WorkerFrom(ctx context.Context) Worker {
	if w, ok := ctx.Value(workerKey{}).(Worker); ok {
		return w
	}
	return Worker{Name: "unknown"}
}

// job is a submitted task together with its future.
type job struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	task     Task
	future   *Future
	enqueued time.Time
}

func newJob(ctx context.Context, task Task) *job {
	jctx, cancel := context.WithCancelCause(ctx)
	return &job{
		ctx:      jctx,
		cancel:   cancel,
		task:     task,
		future:   newFuture(cancel),
		enqueued: time.Now(),
	}
}

// abandon fails the job without running it.
func (j *job) abandon(err error) {
	j.future.complete(model.WorkResult{}, err)
	j.cancel(err)
}

// execute runs the job on worker w and completes its future. Panics are
// converted into model.ErrUnknown failures. It reports whether the task
// returned an error.
func execute(w Worker, j *job) (failed bool) {
	defer j.cancel(nil)

	if err := j.ctx.Err(); err != nil {
		j.future.complete(model.WorkResult{}, fmt.Errorf("%w: cancelled before start: %w", model.ErrInterrupted, context.Cause(j.ctx)))
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			j.future.complete(model.WorkResult{}, fmt.Errorf("%w: panic on %s: %v", model.ErrUnknown, w.Name, r))
			failed = true
		}
	}()

	res, err := j.task(WithWorker(j.ctx, w))
	j.future.complete(res, err)
	return err != nil
}
