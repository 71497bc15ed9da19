package capture

import (
	"sync"

	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

// EventBuffer is a fixed-capacity ring of captured events. When full, the
// oldest event is overwritten: the panel always shows the most recent
// activity. Safe for concurrent use.
type EventBuffer struct {
	mu      sync.Mutex
	events  []domain.Event
	start   int
	count   int
	dropped uint64
}

// NewEventBuffer creates a buffer holding at most capacity events.
// A capacity below 1 is clamped to 1.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer{events: make([]domain.Event, capacity)}
}

// Push appends an event, evicting the oldest when the buffer is full.
func (b *EventBuffer) Push(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.events) {
		b.events[b.start] = e
		b.start = (b.start + 1) % len(b.events)
		b.dropped++
		return
	}
	b.events[(b.start+b.count)%len(b.events)] = e
	b.count++
}

// Snapshot returns the buffered events, oldest first.
func (b *EventBuffer) Snapshot() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Event, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.events[(b.start+i)%len(b.events)]
	}
	return out
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns how many events have been evicted so far.
func (b *EventBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Clear empties the buffer. Eviction counters are preserved.
func (b *EventBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}
