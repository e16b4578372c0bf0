package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is the in-process publish/subscribe bus that decouples the sync
// core from its consumers. Subscribers filter by kind prefix.
//
// Delivery is best-effort: a subscriber that cannot keep up loses
// events instead of stalling the publisher. Dropped() exposes how many
// were lost so the daemon can report an undersized consumer.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Uint64
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose prefix matches
// evt.Kind. Never blocks; full subscribers miss the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber for event kinds starting with
// prefix. bufSize controls the channel buffer. The returned function
// removes the subscription.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Dropped returns the number of events lost to full subscriber buffers
// since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
