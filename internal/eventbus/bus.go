package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by the dashboard components.
const (
	NoticePublished = "notice.published"
	NoticeEvicted   = "notice.evicted"
	NoticeClosing   = "notice.closing"
	NoticePurged    = "notice.purged"

	RefreshStarted  = "refresh.started"
	RefreshStopped  = "refresh.stopped"
	RefreshReplaced = "refresh.replaced"
	RefreshFailed   = "refresh.failed"
	RefreshSkipped  = "refresh.skipped"
	RefreshToggled  = "refresh.toggled"

	RegionUpdated = "region.updated"
	ConfigApplied = "config.applied"
)

// Event is an in-memory signal used to decouple the notice manager, the
// refresh scheduler and their observers (metrics, event stream, mirror).
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; a slow subscriber drops events.
//
// Data should be small and JSON-serializable.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() *MemBus {
	return &MemBus{subs: map[uint64]chan Event{}}
}

type MemBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *MemBus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Send under the read lock so unsubscribe (write lock) cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers reports the current subscriber count.
func (b *MemBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
