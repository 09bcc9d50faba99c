package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/seantiz/threadbench/internal/executor"
	"github.com/seantiz/threadbench/internal/model"
	"github.com/seantiz/threadbench/internal/simulator"
	"github.com/seantiz/threadbench/internal/store"
)

// DefaultCaller names the calling context when none is attached to ctx.
const DefaultCaller = "caller"

// StatusUp is the only status Health reports.
const StatusUp = "UP"

type callerKey struct{}

// WithCaller returns a context naming the execution context that calls
// Handle. Sync mode reports it as the worker identity and Health reports it as
// the current worker.
func WithCaller(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerKey{}, name)
}

func callerFrom(ctx context.Context) string {
	if name, ok := ctx.Value(callerKey{}).(string); ok && name != "" {
		return name
	}
	return DefaultCaller
}

// Engine handles work requests in one of three modes.
type Engine struct {
	sim     *simulator.Simulator
	async   executor.Strategy
	virtual executor.Strategy
	samples *sampleRecorder
	broker  *ResultBroker
	logger  *slog.Logger

	counter atomic.Uint64
}

// NewEngine creates a request handler. async backs async mode and virtual
// backs virtual mode. s may be nil, in which case samples are not recorded.
// Samples are written in the background; Close must be called to flush them.
func NewEngine(sim *simulator.Simulator, async, virtual executor.Strategy, s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		sim:     sim,
		async:   async,
		virtual: virtual,
		broker:  NewResultBroker(),
		logger:  logger,
	}
	if s != nil {
		e.samples = newSampleRecorder(s, logger)
	}
	return e
}

// Broker returns the engine's result broker for SSE subscription.
func (e *Engine) Broker() *ResultBroker {
	return e.broker
}

// RequestsProcessed returns the number of requests accepted so far.
func (e *Engine) RequestsProcessed() uint64 {
	return e.counter.Load()
}

// Handle runs input in the given mode and returns its result.
//
// Sync and virtual failures are returned as a *model.Error alongside a result
// describing the failure. Async failures are never returned: the result
// carries the error message and kind instead.
func (e *Engine) Handle(ctx context.Context, mode model.Mode, input string) (model.WorkResult, error) {
	if _, err := model.ParseMode(string(mode)); err != nil {
		return model.WorkResult{}, err
	}

	req := model.WorkRequest{Input: input, RequestID: e.counter.Add(1)}

	var (
		res model.WorkResult
		err error
	)
	switch mode {
	case model.ModeSync:
		res, err = e.runSync(ctx, req)
	case model.ModeAsync:
		res, err = e.runOn(ctx, e.async, model.ModeAsync, req)
	case model.ModeVirtual:
		res, err = e.runOn(ctx, e.virtual, model.ModeVirtual, req)
	}

	e.report(res, err)

	if mode == model.ModeAsync {
		return res, nil
	}
	return res, err
}

// Health reports the request counter and the caller's identity. It does not
// touch the simulator.
func (e *Engine) Health(ctx context.Context) model.Health {
	return model.Health{
		Status:                StatusUp,
		RequestsProcessed:     e.counter.Load(),
		CurrentWorkerIdentity: callerFrom(ctx),
	}
}

// Flush waits until every result reported before the call has been written
// to the store.
func (e *Engine) Flush(ctx context.Context) error {
	if e.samples == nil {
		return nil
	}
	return e.samples.flush(ctx)
}

// Close ends all result streams and writes out queued samples. Results
// reported after Close are not recorded.
func (e *Engine) Close() {
	e.broker.Close()
	if e.samples != nil {
		e.samples.close()
	}
}

// runSync simulates on the calling goroutine.
func (e *Engine) runSync(ctx context.Context, req model.WorkRequest) (model.WorkResult, error) {
	w := executor.Worker{Name: callerFrom(ctx)}
	start := time.Now()

	out, err := e.sim.Simulate(executor.WithWorker(ctx, w), req)

	res := model.WorkResult{
		RequestID:      req.RequestID,
		Mode:           model.ModeSync,
		ResultText:     out.Text,
		DelayMillis:    out.Delay.Milliseconds(),
		ElapsedMillis:  time.Since(start).Milliseconds(),
		ExecutorLabel:  model.LabelSync,
		WorkerIdentity: w.Name,
	}
	return finish(res, err)
}

// runOn submits the simulation to s and waits for it. Elapsed time runs from
// submission to resolution.
func (e *Engine) runOn(ctx context.Context, s executor.Strategy, mode model.Mode, req model.WorkRequest) (model.WorkResult, error) {
	start := time.Now()

	var res model.WorkResult
	f, err := s.Submit(ctx, e.task(req))
	if err == nil {
		res, err = f.Wait(ctx)
	}

	res.RequestID = req.RequestID
	res.Mode = mode
	res.ElapsedMillis = time.Since(start).Milliseconds()
	res.ExecutorLabel = s.Capabilities().Label
	return finish(res, err)
}

// task wraps the simulation for an executor. The worker identity comes from
// the executor through the task context.
func (e *Engine) task(req model.WorkRequest) executor.Task {
	return func(ctx context.Context) (model.WorkResult, error) {
		w := executor.WorkerFrom(ctx)
		out, err := e.sim.Simulate(ctx, req)
		return model.WorkResult{
			ResultText:     out.Text,
			DelayMillis:    out.Delay.Milliseconds(),
			WorkerIdentity: w.Name,
			IsLightweight:  w.Lightweight,
		}, err
	}
}

// finish attaches the request ID to err and records it on res.
func finish(res model.WorkResult, err error) (model.WorkResult, error) {
	if err == nil {
		return res, nil
	}
	err = model.WrapError(res.RequestID, err)
	res.Error = err.Error()
	res.ErrorKind = model.KindOf(err)
	return res, err
}

// report counts the result, queues it as a sample and publishes it. Samples
// are written off the request path, so interrupted work is still recorded.
func (e *Engine) report(res model.WorkResult, err error) {
	observe(res)

	if err != nil {
		e.logger.Warn("request failed",
			"request_id", res.RequestID,
			"mode", res.Mode,
			"executor", res.ExecutorLabel,
			"error_kind", res.ErrorKind,
			"error", err,
		)
	}

	if e.samples != nil {
		e.samples.enqueue(model.NewSample(res))
	}

	e.broker.Publish(res)
}
