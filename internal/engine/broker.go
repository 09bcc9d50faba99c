package engine

import (
	"sync"

	"github.com/seantiz/threadbench/internal/model"
)

// subscriberBufferSize is the channel buffer for each result subscriber.
// Results are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 256

// AllModes is the topic that receives every published result.
const AllModes model.Mode = ""

// ResultBroker fans finished results out to subscribers. Subscribers pick a
// topic: a single mode, or AllModes. It is safe for concurrent use.
type ResultBroker struct {
	mu     sync.Mutex
	topics map[model.Mode]*resultTopic
	closed bool
}

type resultTopic struct {
	subs   map[int]chan model.WorkResult
	nextID int
}

// NewResultBroker creates a new result broker.
func NewResultBroker() *ResultBroker {
	return &ResultBroker{
		topics: make(map[model.Mode]*resultTopic),
	}
}

// Subscribe returns a channel that receives results for mode (or every result
// for AllModes) and an unsubscribe function. After Close the returned channel
// is already closed.
func (b *ResultBroker) Subscribe(mode model.Mode) (<-chan model.WorkResult, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.WorkResult, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	t, ok := b.topics[mode]
	if !ok {
		t = &resultTopic{subs: make(map[int]chan model.WorkResult)}
		b.topics[mode] = t
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends res to subscribers of its mode and of AllModes. Results are
// dropped for subscribers whose buffers are full.
func (b *ResultBroker) Publish(res model.WorkResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, mode := range []model.Mode{res.Mode, AllModes} {
		t, ok := b.topics[mode]
		if !ok {
			continue
		}
		for _, ch := range t.subs {
			select {
			case ch <- res:
			default:
				// Never block request handling on a slow stream.
			}
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *ResultBroker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, t := range b.topics {
		n += len(t.subs)
	}
	return n
}

// Close closes every subscriber channel. Later Subscribe calls return a
// closed channel and Publish becomes a no-op.
func (b *ResultBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, t := range b.topics {
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
	}
}
