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

// Policy decides what Submit does when every worker is busy and the queue is
// full.
type Policy string

// Saturation policies.
const (
	// PolicyReject fails the submission with an error matching
	// model.ErrRejected.
	PolicyReject Policy = "reject"
	// PolicyBlock makes the submitter wait for queue space or for its
	// context to end.
	PolicyBlock Policy = "block"
)

// Bounded pool defaults, matching a typical servlet-container sizing.
const (
	DefaultCoreSize      = 200
	DefaultMaxSize       = 500
	DefaultQueueCapacity = 1000
	DefaultKeepAlive     = 60 * time.Second
	DefaultNamePrefix    = "platform-"
)

// BoundedConfig configures a BoundedPool.
type BoundedConfig struct {
	Name          string
	CoreSize      int
	MaxSize       int
	QueueCapacity int
	KeepAlive     time.Duration
	Policy        Policy
	NamePrefix    string
}

// DefaultBoundedConfig returns a 200/500/1000 pool that rejects on saturation.
func DefaultBoundedConfig() BoundedConfig {
	return BoundedConfig{
		Name:          KindBounded,
		CoreSize:      DefaultCoreSize,
		MaxSize:       DefaultMaxSize,
		QueueCapacity: DefaultQueueCapacity,
		KeepAlive:     DefaultKeepAlive,
		Policy:        PolicyReject,
		NamePrefix:    DefaultNamePrefix,
	}
}

// BoundedPool is a fixed-capacity worker pool. Submission follows the
// classic thread-pool order: start a worker while fewer than CoreSize exist,
// otherwise queue, otherwise start a worker while fewer than MaxSize exist,
// otherwise apply the saturation Policy. Workers above CoreSize exit after
// KeepAlive without work.
type BoundedPool struct {
	cfg    BoundedConfig
	logger *slog.Logger

	queue chan *job

	// mu guards closed. Submitters hold the read lock for the whole
	// submission so that Shutdown, which takes the write lock, knows no send
	// to queue is in flight afterwards.
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	workers    atomic.Int32
	busy       atomic.Int32
	nextWorker atomic.Uint64

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// Compile-time interface satisfaction check.
var _ Strategy = (*BoundedPool)(nil)

// NewBoundedPool creates a pool. Workers are started lazily on submission.
func NewBoundedPool(cfg BoundedConfig, logger *slog.Logger) *BoundedPool {
	if cfg.Name == "" {
		cfg.Name = KindBounded
	}
	if cfg.CoreSize <= 0 {
		cfg.CoreSize = 1
	}
	if cfg.MaxSize < cfg.CoreSize {
		cfg.MaxSize = cfg.CoreSize
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = 0
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = DefaultNamePrefix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	initMetrics(cfg.Name)

	return &BoundedPool{
		cfg:    cfg,
		logger: logger.With("executor", cfg.Name),
		queue:  make(chan *job, cfg.QueueCapacity),
		done:   make(chan struct{}),
	}
}

// Submit hands task to the pool. See BoundedPool for the admission order.
func (p *BoundedPool) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.isDone() {
		p.reject()
		return nil, ErrPoolClosed
	}

	// Counted up front so a snapshot never shows more completed than
	// submitted; withdraw undoes it if the task is not admitted.
	p.submitted.Add(1)
	j := newJob(ctx, task)

	if p.trySpawn(p.cfg.CoreSize, j) || p.tryEnqueue(j) || p.trySpawn(p.cfg.MaxSize, j) {
		return p.admit(j), nil
	}

	if p.cfg.Policy == PolicyReject {
		p.withdraw()
		p.reject()
		err := fmt.Errorf("%w: %s saturated with %d workers and %d queued tasks",
			model.ErrRejected, p.cfg.Name, p.workers.Load(), len(p.queue))
		j.abandon(err)
		return nil, err
	}

	select {
	case p.queue <- j:
		queueDepth.WithLabelValues(p.cfg.Name).Set(float64(len(p.queue)))
		return p.admit(j), nil
	case <-ctx.Done():
		err := fmt.Errorf("%w: waiting for queue space: %w", model.ErrInterrupted, context.Cause(ctx))
		p.withdraw()
		j.abandon(err)
		return nil, err
	case <-p.done:
		p.withdraw()
		p.reject()
		j.abandon(ErrPoolClosed)
		return nil, ErrPoolClosed
	}
}

func (p *BoundedPool) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *BoundedPool) admit(j *job) *Future {
	tasksSubmitted.WithLabelValues(p.cfg.Name).Inc()
	return j.future
}

func (p *BoundedPool) withdraw() {
	p.submitted.Add(^uint64(0))
}

func (p *BoundedPool) reject() {
	p.rejected.Add(1)
	tasksRejected.WithLabelValues(p.cfg.Name).Inc()
}

func (p *BoundedPool) tryEnqueue(j *job) bool {
	select {
	case p.queue <- j:
		queueDepth.WithLabelValues(p.cfg.Name).Set(float64(len(p.queue)))
		return true
	default:
		return false
	}
}

// trySpawn starts a worker running first if fewer than limit workers exist.
func (p *BoundedPool) trySpawn(limit int, first *job) bool {
	for {
		n := p.workers.Load()
		if int(n) >= limit {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			poolWorkers.WithLabelValues(p.cfg.Name).Set(float64(n + 1))
			w := Worker{Name: fmt.Sprintf("%s%d", p.cfg.NamePrefix, p.nextWorker.Add(1))}
			p.wg.Go(func() {
				p.work(w, first)
			})
			return true
		}
	}
}

// retire decrements the worker count if the pool is above its core size.
func (p *BoundedPool) retire() bool {
	for {
		n := p.workers.Load()
		if int(n) <= p.cfg.CoreSize {
			return false
		}
		if p.workers.CompareAndSwap(n, n-1) {
			poolWorkers.WithLabelValues(p.cfg.Name).Set(float64(n - 1))
			return true
		}
	}
}

func (p *BoundedPool) work(w Worker, first *job) {
	if first != nil {
		p.run(w, first)
	}

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()

	for {
		select {
		case j := <-p.queue:
			queueDepth.WithLabelValues(p.cfg.Name).Set(float64(len(p.queue)))
			p.run(w, j)
			idle.Reset(p.cfg.KeepAlive)
		case <-idle.C:
			if p.retire() {
				p.logger.Debug("idle worker retired", "worker", w.Name)
				return
			}
			idle.Reset(p.cfg.KeepAlive)
		case <-p.done:
			p.drain(w)
			n := p.workers.Add(-1)
			poolWorkers.WithLabelValues(p.cfg.Name).Set(float64(n))
			return
		}
	}
}

// drain runs whatever is still queued when shutdown starts.
func (p *BoundedPool) drain(w Worker) {
	for {
		select {
		case j := <-p.queue:
			p.run(w, j)
		default:
			return
		}
	}
}

func (p *BoundedPool) run(w Worker, j *job) {
	queueWait.WithLabelValues(p.cfg.Name).Observe(time.Since(j.enqueued).Seconds())

	busyWorkers.WithLabelValues(p.cfg.Name).Set(float64(p.busy.Add(1)))
	start := time.Now()

	failed := execute(w, j)

	taskDuration.WithLabelValues(p.cfg.Name).Observe(time.Since(start).Seconds())
	busyWorkers.WithLabelValues(p.cfg.Name).Set(float64(p.busy.Add(-1)))
	tasksCompleted.WithLabelValues(p.cfg.Name, outcome(failed)).Inc()
	p.completed.Add(1)
	if failed {
		p.failed.Add(1)
	}
}

// Capabilities reports the pool configuration.
func (p *BoundedPool) Capabilities() Capabilities {
	return Capabilities{
		Kind:          KindBounded,
		Label:         model.LabelBoundedPool,
		Lightweight:   false,
		CoreSize:      p.cfg.CoreSize,
		MaxSize:       p.cfg.MaxSize,
		QueueCapacity: p.cfg.QueueCapacity,
		Policy:        p.cfg.Policy,
	}
}

// Stats returns current pool counters.
func (p *BoundedPool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Busy:      int(p.busy.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Shutdown stops accepting work, lets workers finish running and queued
// tasks, and waits for them up to ctx. Tasks still queued once all workers
// have exited are failed with ErrPoolClosed rather than dropped.
func (p *BoundedPool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.logger.Info("shutting down executor", "workers", p.workers.Load(), "queued", len(p.queue))
		close(p.done)
	})

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return fmt.Errorf("shutdown %s: %w", p.cfg.Name, ctx.Err())
	}

	for {
		select {
		case j := <-p.queue:
			j.abandon(ErrPoolClosed)
		default:
			queueDepth.WithLabelValues(p.cfg.Name).Set(0)
			p.logger.Info("executor shut down complete")
			return nil
		}
	}
}
