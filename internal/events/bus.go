// Package events broadcasts engine activity to stream clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the engine.
const (
	TypeChat       = "chat"
	TypeReflection = "reflection"
	TypeEvolve     = "evolve"
	TypeLearn      = "learn"
)

// Event is a single notification.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	TS      time.Time `json:"ts"`
}

// DefaultRecent is how many events the bus keeps for late subscribers.
const DefaultRecent = 200

type subscriber struct {
	ch chan Event
}

// Bus fans out events to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and can catch up through Recent.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	recent []Event
	max    int
}

// NewBus creates a bus keeping the last keep events; keep <= 0 uses DefaultRecent.
func NewBus(keep int) *Bus {
	if keep <= 0 {
		keep = DefaultRecent
	}
	return &Bus{
		subs: make(map[*subscriber]struct{}),
		max:  keep,
	}
}

// Publish stamps and sends an event. ID and TS are filled when empty.
func (b *Bus) Publish(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TS.IsZero() {
		e.TS = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, e)
	if len(b.recent) > b.max {
		b.recent = b.recent[len(b.recent)-b.max:]
	}

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
	return e
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			close(sub.ch)
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	out := make([]Event, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

// SubscriberCount returns the number of connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
