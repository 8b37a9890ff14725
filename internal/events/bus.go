// Package events provides the in-process event bus carrying subscription
// lifecycle notifications from the host surface to the sync intake.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsub/subsync/internal/subscription"
)

// Type identifies the kind of lifecycle notification.
type Type string

const (
	// SubscribeAdded fires after a subscription has been created. The event
	// payload only carries the record id; consumers re-fetch the full record.
	SubscribeAdded Type = "subscribe.added"

	// SubscribeDeleted fires after a subscription has been removed. The
	// store copy is already gone when the event fires, so the payload
	// carries the full record inline.
	SubscribeDeleted Type = "subscribe.deleted"
)

// Event is a single lifecycle notification.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// SubscribeID is set for SubscribeAdded events.
	SubscribeID int64 `json:"subscribe_id,omitempty"`

	// Subscription is set for SubscribeDeleted events.
	Subscription *subscription.Subscription `json:"subscribe_info,omitempty"`
}

// NewSubscribeAdded builds a SubscribeAdded event for the given record id.
func NewSubscribeAdded(subscribeID int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        SubscribeAdded,
		Timestamp:   time.Now(),
		SubscribeID: subscribeID,
	}
}

// NewSubscribeDeleted builds a SubscribeDeleted event carrying the removed
// record inline.
func NewSubscribeDeleted(sub *subscription.Subscription) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         SubscribeDeleted,
		Timestamp:    time.Now(),
		Subscription: sub,
	}
}

// Handler consumes a single event. Handlers must not retain the event past
// the call; it is discarded once every subscriber has seen it.
type Handler func(ctx context.Context, event Event)

// Bus is a minimal typed publish/subscribe hub. Delivery is synchronous and
// serialized per event type: one Added event is handled at a time, possibly
// concurrently with a Deleted event, mirroring the host's delivery model.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	seq      map[Type]*sync.Mutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		seq:      make(map[Type]*sync.Mutex),
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	if _, ok := b.seq[eventType]; !ok {
		b.seq[eventType] = &sync.Mutex{}
	}
}

// Publish delivers the event to every subscriber of its type. A panicking
// handler is recovered and logged; it never takes down the publisher.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[event.Type]
	seq := b.seq[event.Type]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	seq.Lock()
	defer seq.Unlock()

	for _, handler := range handlers {
		b.deliver(ctx, handler, event)
	}
}

func (*Bus) deliver(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic in event handler",
				"event_type", string(event.Type),
				"event_id", event.ID,
				"panic", r)
		}
	}()

	handler(ctx, event)
}
