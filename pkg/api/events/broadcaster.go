// Package events provides an in-process broadcaster for memory store
// mutations, feeding the websocket event stream.
package events

import (
	"sync"
	"time"
)

// Event types emitted by the API layer.
const (
	TypeMemoryStored  = "memory.stored"
	TypeMemoryDeleted = "memory.deleted"
)

// Event is the canonical event payload broadcast to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster broadcasts events to in-process subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe subscribes to events with a buffered channel.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Broadcast broadcasts a generic event to all subscribers.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Send while holding the read lock: Unsubscribe and Close take the
	// write lock, so a channel cannot be closed mid-broadcast. Sends are
	// non-blocking, keeping the critical section bounded.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop on overflow to keep broadcasters non-blocking.
		}
	}
}

// BroadcastMemoryStored emits an event for a newly appended memory item.
func (b *Broadcaster) BroadcastMemoryStored(userID, llm, content string, storedAt time.Time) {
	b.Broadcast(Event{
		Type: TypeMemoryStored,
		Payload: map[string]any{
			"user_id":   userID,
			"llm":       llm,
			"content":   content,
			"stored_at": storedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// BroadcastMemoryDeleted emits an event for a timeline wipe.
func (b *Broadcaster) BroadcastMemoryDeleted(userID string, deleted int) {
	b.Broadcast(Event{
		Type: TypeMemoryDeleted,
		Payload: map[string]any{
			"user_id": userID,
			"deleted": deleted,
		},
	})
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
