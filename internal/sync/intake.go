package sync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloudsub/subsync/internal/events"
	"github.com/cloudsub/subsync/internal/subscription"
)

// Intake bridges the event bus to the dispatcher. Added events only carry a
// record id, so the full record is re-fetched from the store; deleted events
// carry the record inline because the store copy is already gone.
type Intake struct {
	store      subscription.Store
	dispatcher *Dispatcher
}

// NewIntake creates an Intake reading records from store.
func NewIntake(store subscription.Store, dispatcher *Dispatcher) *Intake {
	return &Intake{
		store:      store,
		dispatcher: dispatcher,
	}
}

// Register subscribes the intake handlers on the bus.
func (i *Intake) Register(bus *events.Bus) {
	bus.Subscribe(events.SubscribeAdded, i.handleAdded)
	bus.Subscribe(events.SubscribeDeleted, i.handleDeleted)
}

func (i *Intake) handleAdded(ctx context.Context, event events.Event) {
	defer recoverIntake(event)

	if event.SubscribeID == 0 {
		return
	}

	sub, err := i.store.GetByID(ctx, event.SubscribeID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			// Already removed again; nothing to propagate.
			return
		}
		slog.Error("Failed to resolve added subscription",
			"subscribe_id", event.SubscribeID,
			"error", err)
		return
	}

	i.dispatcher.Dispatch(ctx, ActionAdd, sub)
}

func (i *Intake) handleDeleted(ctx context.Context, event events.Event) {
	defer recoverIntake(event)

	if event.Subscription == nil {
		return
	}

	i.dispatcher.Dispatch(ctx, ActionDelete, event.Subscription)
}

// recoverIntake keeps a handler panic from propagating into the bus loop.
func recoverIntake(event events.Event) {
	if r := recover(); r != nil {
		slog.Error("Recovered from panic while handling subscription event",
			"event_type", string(event.Type),
			"event_id", event.ID,
			"panic", r)
	}
}
