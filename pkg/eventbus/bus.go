// Copyright 2025 Certen Protocol
//
// In-process broadcast bus. Grounded on the channel-fan-out pattern used
// throughout the teacher's server package for streaming updates, adapted
// to spec.md §4.5's fixed-ring/drop-slow-subscriber contract: a publisher
// must never block on a slow subscriber, so each subscriber gets its own
// buffered channel and is unsubscribed (not the publisher stalled) the
// moment its buffer is full.

package eventbus

import "sync"

// Capacity is the fixed ring size every subscriber channel is allocated
// with (spec.md §4.5).
const Capacity = 256

// Bus is a process-local, best-effort broadcast channel. Zero value is
// not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan string
	nextID      int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan string)}
}

// Subscribe registers a new receiver and returns its channel along with
// an unsubscribe function. The returned channel is closed either by
// unsubscribe or by Publish when the subscriber's buffer overflows;
// calling unsubscribe after such a drop is a no-op.
func (b *Bus) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan string, Capacity)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish serializes nothing itself — callers pass an already-encoded
// JSON string — and fans it out to every live subscriber. A subscriber
// whose buffer is full is dropped rather than allowed to block this
// call; per-publisher ordering to each surviving subscriber is
// preserved, since delivery here holds the bus lock for the whole
// fan-out.
func (b *Bus) Publish(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- text:
		default:
			delete(b.subscribers, id)
			close(ch)
		}
	}
}

// SubscriberCount reports the number of currently live subscribers, for
// diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
