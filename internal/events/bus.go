// Package events provides the per-debate pub/sub bus with a bounded replay
// history for stream reconnection.
package events

import (
	"log/slog"
	"sync"
	"time"

	"rostra/internal/domain/debate"
)

// historySize caps the replay ring per debate. Matches the SSE catch-up
// window; tunable.
const historySize = 100

// Subscriber receives events for one debate. Callbacks run synchronously on
// the publisher's goroutine; panics are isolated and logged.
type Subscriber func(debate.Event)

type channel struct {
	mu          sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
	nextSeq     uint64
	history     []debate.Event // ring, oldest first
	lastActive  time.Time
}

// Bus multiplexes lifecycle and streaming events per debate id. Within one
// debate, subscribers observe events in emit order; no cross-debate
// ordering is guaranteed.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]*channel
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		channels: make(map[string]*channel),
		logger:   logger,
	}
}

func (b *Bus) channelFor(debateID string, create bool) *channel {
	b.mu.RLock()
	ch := b.channels[debateID]
	b.mu.RUnlock()
	if ch != nil || !create {
		return ch
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch = b.channels[debateID]; ch == nil {
		ch = &channel{
			subscribers: make(map[int]Subscriber),
			lastActive:  time.Now(),
		}
		b.channels[debateID] = ch
	}
	return ch
}

// Subscribe registers a callback for one debate and returns its
// unsubscribe function.
func (b *Bus) Subscribe(debateID string, fn Subscriber) func() {
	ch := b.channelFor(debateID, true)
	ch.mu.Lock()
	id := ch.nextSubID
	ch.nextSubID++
	ch.subscribers[id] = fn
	ch.lastActive = time.Now()
	ch.mu.Unlock()

	return func() {
		ch.mu.Lock()
		delete(ch.subscribers, id)
		ch.mu.Unlock()
	}
}

// Publish delivers an event to every subscriber of its debate and appends
// it to the replay ring. The event is stamped with the channel's next
// sequence number. Publication is synchronous; a failing callback never
// breaks emission.
func (b *Bus) Publish(event debate.Event) {
	ch := b.channelFor(event.DebateID, true)

	ch.mu.Lock()
	ch.nextSeq++
	event.Seq = ch.nextSeq
	ch.history = append(ch.history, event)
	if len(ch.history) > historySize {
		ch.history = ch.history[len(ch.history)-historySize:]
	}
	ch.lastActive = time.Now()
	subs := make([]Subscriber, 0, len(ch.subscribers))
	for _, fn := range ch.subscribers {
		subs = append(subs, fn)
	}
	ch.mu.Unlock()

	for _, fn := range subs {
		b.deliver(fn, event)
	}
}

func (b *Bus) deliver(fn Subscriber, event debate.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"debate_id", event.DebateID,
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()
	fn(event)
}

// Recent returns the retained events for a debate, or only those strictly
// after since when it is non-nil.
func (b *Bus) Recent(debateID string, since *time.Time) []debate.Event {
	ch := b.channelFor(debateID, false)
	if ch == nil {
		return nil
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if since == nil {
		return append([]debate.Event(nil), ch.history...)
	}
	out := make([]debate.Event, 0, len(ch.history))
	for _, e := range ch.history {
		if e.Timestamp.After(*since) {
			out = append(out, e)
		}
	}
	return out
}

// Cleanup drops channels idle longer than maxAge. Called periodically by
// the server.
func (b *Bus) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, ch := range b.channels {
		ch.mu.Lock()
		idle := ch.lastActive.Before(cutoff) && len(ch.subscribers) == 0
		ch.mu.Unlock()
		if idle {
			delete(b.channels, id)
			removed++
		}
	}
	return removed
}
