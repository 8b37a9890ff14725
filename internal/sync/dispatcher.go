package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/dedup"
	"github.com/cloudsub/subsync/internal/subscription"
	"github.com/cloudsub/subsync/internal/telemetry"
)

// Dispatcher runs each subscription change through the gate chain and hands
// survivors to the delivery client. Dispatch never returns an error; every
// failure is logged and swallowed so one bad record cannot interrupt a batch.
type Dispatcher struct {
	config  *config.Manager
	cache   *dedup.Cache
	client  Client
	metrics *telemetry.DispatchMetrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCache replaces the default dedup cache.
func WithCache(cache *dedup.Cache) DispatcherOption {
	return func(d *Dispatcher) {
		d.cache = cache
	}
}

// WithMetrics attaches dispatch metrics. A nil value is safe and records
// nothing.
func WithMetrics(metrics *telemetry.DispatchMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a Dispatcher reading toggles from manager and
// sending through client.
func NewDispatcher(manager *config.Manager, client Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		config: manager,
		cache:  dedup.New(dedup.DefaultMaxEntries, dedup.DefaultTTL),
		client: client,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch pushes one change through the gates: global enable, per-action
// toggle, kind normalization and per-kind toggle, duplicate suppression,
// delivery. The dedup key is marked before the send, so a failed delivery
// still suppresses repeats of the same change for the rest of the window.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, sub *subscription.Subscription) {
	if sub == nil {
		return
	}

	// Immutable snapshot: every gate below sees one consistent view even
	// if the config is saved mid-dispatch.
	cfg := d.config.Snapshot()

	if !cfg.Enabled {
		return
	}
	if !actionAllowed(cfg, action) {
		return
	}

	kind, ok := NormalizeKind(sub.Type)
	if !ok {
		slog.Debug("Skipping change with unrecognized media type",
			"type", sub.Type,
			"title", sub.Name)
		d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeSkipped)
		return
	}
	if !kindAllowed(cfg, kind) {
		d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeSkipped)
		return
	}

	key := DedupKey(action, kind, sub)
	if d.cache.Seen(key) {
		slog.Debug("Suppressing duplicate change",
			"key", key,
			"title", sub.Name)
		d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeDuplicate)
		return
	}
	d.cache.Mark(key)

	if cfg.RemoteURL == "" {
		slog.Debug("No remote endpoint configured, skipping delivery")
		d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeSkipped)
		return
	}

	payload := BuildPayload(action, cfg.APIKey, kind, sub)

	start := time.Now()
	err := d.client.Send(ctx, cfg.RemoteURL, payload)
	d.metrics.RecordDeliveryDuration(ctx, time.Since(start), err == nil)

	if err != nil {
		slog.Error("Failed to deliver subscription change",
			"action", string(action),
			"title", sub.Name,
			"tmdb_id", sub.TMDBID,
			"error", err)
		d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeFailed)
		return
	}

	slog.Info("Delivered subscription change",
		"action", string(action),
		"type", string(kind),
		"title", sub.Name,
		"tmdb_id", sub.TMDBID)
	d.metrics.RecordChange(ctx, string(action), telemetry.OutcomeDelivered)
}

func actionAllowed(cfg config.Config, action Action) bool {
	switch action {
	case ActionAdd:
		return cfg.SyncAdd
	case ActionDelete:
		return cfg.SyncDelete
	default:
		return false
	}
}
