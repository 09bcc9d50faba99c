// Package simulator provides the unit of simulated business logic: a
// randomized, interruptible wait standing in for blocking I/O.
package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/seantiz/threadbench/internal/executor"
	"github.com/seantiz/threadbench/internal/model"
)

// Defaults for the simulated work.
const (
	DefaultMinDelay  = 50 * time.Millisecond
	DefaultMaxDelay  = 200 * time.Millisecond
	DefaultTailEvery = 10
	DefaultTailExtra = 10 * time.Millisecond
)

// Config controls the delay distribution. Delays are drawn with millisecond
// granularity, uniformly from [MinDelay, MaxDelay] inclusive. Every request
// whose ID is a multiple of TailEvery gets TailExtra added.
type Config struct {
	MinDelay  time.Duration
	MaxDelay  time.Duration
	TailEvery uint64
	TailExtra time.Duration
}

// DefaultConfig returns the stock 50-200ms distribution with a 10ms bump on
// every 10th request.
func DefaultConfig() Config {
	return Config{
		MinDelay:  DefaultMinDelay,
		MaxDelay:  DefaultMaxDelay,
		TailEvery: DefaultTailEvery,
		TailExtra: DefaultTailExtra,
	}
}

// Outcome is what a completed simulation produced.
type Outcome struct {
	Text  string
	Delay time.Duration
}

// Simulator runs simulated work. It is safe for concurrent use.
type Simulator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand // nil uses the global source
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRand makes the delay draw deterministic for a given source.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// New creates a simulator. A zero TailEvery disables the tail bump.
func New(cfg Config, opts ...Option) *Simulator {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	s := &Simulator{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the simulator's delay configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Delay resolves the delay for requestID without waiting.
func (s *Simulator) Delay(requestID uint64) time.Duration {
	minMs := s.cfg.MinDelay.Milliseconds()
	span := s.cfg.MaxDelay.Milliseconds() - minMs + 1

	var ms int64
	if s.rng != nil {
		s.mu.Lock()
		ms = minMs + s.rng.Int64N(span)
		s.mu.Unlock()
	} else {
		ms = minMs + rand.Int64N(span)
	}

	d := time.Duration(ms) * time.Millisecond
	if s.cfg.TailEvery > 0 && requestID%s.cfg.TailEvery == 0 {
		d += s.cfg.TailExtra
	}
	return d
}

// Simulate waits for a randomized delay on the calling goroutine and returns
// a description naming the request, its input, the delay and the worker that
// ran it. If ctx ends first the call fails with a KindInterrupted *model.Error.
func (s *Simulator) Simulate(ctx context.Context, req model.WorkRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, interrupted(ctx, req.RequestID)
	}

	delay := s.Delay(req.RequestID)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return Outcome{}, interrupted(ctx, req.RequestID)
	}

	w := executor.WorkerFrom(ctx)
	return Outcome{
		Text: fmt.Sprintf("[%d]: Processed '%s' in %dms on %s (lightweight=%t)",
			req.RequestID, req.Input, delay.Milliseconds(), w.Name, w.Lightweight),
		Delay: delay,
	}, nil
}

func interrupted(ctx context.Context, requestID uint64) error {
	return &model.Error{
		Kind:      model.KindInterrupted,
		RequestID: requestID,
		Err:       context.Cause(ctx),
	}
}
