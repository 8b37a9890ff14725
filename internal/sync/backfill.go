package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/subscription"
	"github.com/cloudsub/subsync/internal/telemetry"
)

// DefaultBackfillThrottle is the pause between backfill dispatches, keeping
// a large store from flooding the remote in one burst.
const DefaultBackfillThrottle = 500 * time.Millisecond

// Reconciler states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// Status is a point-in-time snapshot of the reconciler.
type Status struct {
	State             string    `json:"state"`
	LastStarted       time.Time `json:"last_started,omitempty"`
	LastFinished      time.Time `json:"last_finished,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	RecordsDispatched int       `json:"records_dispatched"`
}

// Reconciler performs the one-shot backfill: it walks every existing
// subscription through the dispatcher as an add, then flips the
// sync_history toggle off and persists the config. Only one run can be
// active at a time.
type Reconciler struct {
	config     *config.Manager
	store      subscription.Store
	dispatcher *Dispatcher
	metrics    *telemetry.BackfillMetrics
	throttle   time.Duration

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithThrottle overrides the pause between dispatched records.
func WithThrottle(throttle time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if throttle >= 0 {
			r.throttle = throttle
		}
	}
}

// WithBackfillMetrics attaches backfill metrics. A nil value is safe.
func WithBackfillMetrics(metrics *telemetry.BackfillMetrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = metrics
	}
}

// NewReconciler creates an idle Reconciler.
func NewReconciler(manager *config.Manager, store subscription.Store, dispatcher *Dispatcher, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		config:     manager,
		store:      store,
		dispatcher: dispatcher,
		throttle:   DefaultBackfillThrottle,
		status:     Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trigger starts a backfill run if none is active. It returns false when a
// run is already in progress. The run itself happens on a background
// goroutine owned by the reconciler; use Stop to cancel and wait for it.
func (r *Reconciler) Trigger(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.State == StateRunning {
		slog.Info("Backfill already running, ignoring trigger")
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.status = Status{
		State:       StateRunning,
		LastStarted: time.Now(),
	}
	r.cancel = cancel
	r.done = done

	go r.run(runCtx, done)

	return true
}

// Stop cancels an active run and waits for it to wind down. Safe to call
// when idle.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns a snapshot of the reconciler state.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Reconciler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	slog.Info("Starting subscription backfill")
	start := time.Now()

	records, err := r.backfill(ctx)
	duration := time.Since(start)

	result := "completed"
	switch {
	case err == nil:
		slog.Info("Backfill completed",
			"records", records,
			"duration", duration.String())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
		slog.Info("Backfill canceled",
			"records", records,
			"duration", duration.String())
	default:
		result = "failed"
		slog.Error("Backfill failed",
			"records", records,
			"error", err)
	}
	r.metrics.RecordRun(ctx, records, duration, result)

	// The toggle is one-shot: completion or failure disarms it so the next
	// startup does not replay history. Cancellation leaves it armed so the
	// run resumes after a restart.
	if result != "canceled" {
		if saveErr := r.config.SetSyncHistory(context.Background(), false); saveErr != nil {
			slog.Error("Failed to disarm backfill toggle", "error", saveErr)
		}
	}

	r.mu.Lock()
	r.status.State = StateIdle
	r.status.LastFinished = time.Now()
	r.status.RecordsDispatched = records
	if err != nil {
		r.status.LastError = err.Error()
	}
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()
}

// backfill enumerates the store and dispatches every record as an add. The
// dispatcher's own gates still apply, so disabled kinds and duplicates are
// filtered per record, not here.
func (r *Reconciler) backfill(ctx context.Context) (int, error) {
	subs, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate subscriptions: %w", err)
	}

	dispatched := 0
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		r.dispatcher.Dispatch(ctx, ActionAdd, sub)
		dispatched++

		if err := sleepContext(ctx, r.throttle); err != nil {
			return dispatched, err
		}
	}

	return dispatched, nil
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
