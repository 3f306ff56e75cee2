package broadcast

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/relaymesh/postrelay/pkg/core"
)

// Subscription is a live viewer registered with a Broadcaster. Frames are
// JSON-encoded events; the channel is closed when the subscription ends.
type Subscription struct {
	id   uint64
	send chan []byte
}

// Frames returns the outbound frame queue.
func (s *Subscription) Frames() <-chan []byte {
	return s.send
}

type entry struct {
	event core.WebhookEvent
	frame []byte
}

// Broadcaster keeps a bounded history of recent events and fans new events
// out to every subscription.
type Broadcaster struct {
	mu       sync.Mutex
	capacity int
	buffer   int
	history  []entry
	subs     map[uint64]*Subscription
	nextID   uint64
	closed   bool
	logger   *log.Logger
}

// New creates a Broadcaster retaining historySize events. Each subscription
// queues up to buffer frames, never fewer than historySize.
func New(historySize, buffer int, logger *log.Logger) *Broadcaster {
	if historySize <= 0 {
		historySize = core.DefaultHistorySize
	}
	if buffer < historySize {
		buffer = historySize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		capacity: historySize,
		buffer:   buffer,
		history:  make([]entry, 0, historySize),
		subs:     make(map[uint64]*Subscription),
		logger:   logger,
	}
}

// Subscribe registers a new subscription whose queue already holds the
// current history in arrival order.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, send: make(chan []byte, b.buffer)}
	if b.closed {
		close(sub.send)
		return sub
	}
	for _, e := range b.history {
		sub.send <- e.frame
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its queue. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

func (b *Broadcaster) removeLocked(id uint64) {
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.send)
}

// Publish appends event to the history, evicting the oldest entry at
// capacity, and offers it to every subscription. A subscription whose queue
// is full is dropped.
func (b *Broadcaster) Publish(event core.WebhookEvent) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == b.capacity {
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, entry{event: event, frame: frame})

	for id, sub := range b.subs {
		select {
		case sub.send <- frame:
		default:
			b.logger.Printf("subscriber dropped id=%d reason=queue_full", id)
			b.removeLocked(id)
		}
	}
	return nil
}

// History returns a copy of the retained events, oldest first.
func (b *Broadcaster) History() []core.WebhookEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.WebhookEvent, len(b.history))
	for i, e := range b.history {
		out[i] = e.event
	}
	return out
}

// HistoryLen returns the number of retained events.
func (b *Broadcaster) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id := range b.subs {
		b.removeLocked(id)
	}
}
