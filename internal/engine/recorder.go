package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/seantiz/threadbench/internal/model"
	"github.com/seantiz/threadbench/internal/store"
)

// recordQueueSize bounds the samples waiting to be written. Samples are
// dropped once the writer falls this far behind.
const recordQueueSize = 4096

type recordItem struct {
	sample model.Sample
	// flushed is set on markers queued by flush; the writer closes it once
	// every sample ahead of it is written.
	flushed chan struct{}
}

// sampleRecorder writes samples to the store from a single background
// goroutine so that request handling never waits on the database.
type sampleRecorder struct {
	store  store.Store
	logger *slog.Logger
	queue  chan recordItem

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newSampleRecorder(s store.Store, logger *slog.Logger) *sampleRecorder {
	r := &sampleRecorder{
		store:  s,
		logger: logger,
		queue:  make(chan recordItem, recordQueueSize),
	}
	r.wg.Go(r.run)
	return r
}

func (r *sampleRecorder) run() {
	for item := range r.queue {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		if err := r.store.RecordSample(context.Background(), item.sample); err != nil {
			r.logger.Error("failed to record sample", "request_id", item.sample.RequestID, "error", err)
		}
	}
}

// enqueue never blocks. A full queue or a closed recorder drops the sample.
func (r *sampleRecorder) enqueue(sm model.Sample) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		samplesDropped.Inc()
		return
	}
	select {
	case r.queue <- recordItem{sample: sm}:
	default:
		samplesDropped.Inc()
		r.logger.Warn("sample queue full, dropping sample", "request_id", sm.RequestID)
	}
}

// flush waits until every sample enqueued before the call is written.
func (r *sampleRecorder) flush(ctx context.Context) error {
	done := make(chan struct{})

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil
	}
	select {
	case r.queue <- recordItem{flushed: done}:
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}
	r.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting samples and waits for the queued ones to be written.
func (r *sampleRecorder) close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
