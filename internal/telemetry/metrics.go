package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DispatchMetricsMeterName is the name used for the dispatch metrics meter
	DispatchMetricsMeterName = "github.com/cloudsub/subsync/dispatch"

	// BackfillMetricsMeterName is the name used for the backfill metrics meter
	BackfillMetricsMeterName = "github.com/cloudsub/subsync/backfill"
)

// Dispatch outcome values recorded on the changes counter.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
)

// DispatchMetrics holds the OpenTelemetry instruments for dispatch metrics.
type DispatchMetrics struct {
	changesTotal     metric.Int64Counter
	deliveryDuration metric.Float64Histogram
}

// NewDispatchMetrics creates a new DispatchMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewDispatchMetrics(provider metric.MeterProvider) (*DispatchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DispatchMetricsMeterName)

	changesTotal, err := meter.Int64Counter(
		"subsync_changes_total",
		metric.WithDescription("Subscription changes handled by the dispatcher, by action and outcome"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	deliveryDuration, err := meter.Float64Histogram(
		"subsync_delivery_duration_seconds",
		metric.WithDescription("Duration of outbound delivery attempts in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		changesTotal:     changesTotal,
		deliveryDuration: deliveryDuration,
	}, nil
}

// RecordChange records a handled change with its action and outcome.
func (m *DispatchMetrics) RecordChange(ctx context.Context, action, outcome string) {
	if m == nil || m.changesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	}

	m.changesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDeliveryDuration records the duration of a delivery attempt.
func (m *DispatchMetrics) RecordDeliveryDuration(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.deliveryDuration == nil {
		return
	}

	m.deliveryDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

// BackfillMetrics holds the OpenTelemetry instruments for backfill metrics.
type BackfillMetrics struct {
	runsTotal    metric.Int64Counter
	recordsTotal metric.Int64Counter
	runDuration  metric.Float64Histogram
}

// NewBackfillMetrics creates a new BackfillMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewBackfillMetrics(provider metric.MeterProvider) (*BackfillMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(BackfillMetricsMeterName)

	runsTotal, err := meter.Int64Counter(
		"subsync_backfill_runs_total",
		metric.WithDescription("Backfill runs, by result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	recordsTotal, err := meter.Int64Counter(
		"subsync_backfill_records_total",
		metric.WithDescription("Subscription records fed through the dispatcher by backfill runs"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"subsync_backfill_duration_seconds",
		metric.WithDescription("Duration of backfill runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 15, 60, 300, 900, 3600),
	)
	if err != nil {
		return nil, err
	}

	return &BackfillMetrics{
		runsTotal:    runsTotal,
		recordsTotal: recordsTotal,
		runDuration:  runDuration,
	}, nil
}

// RecordRun records a finished backfill run.
func (m *BackfillMetrics) RecordRun(ctx context.Context, records int, duration time.Duration, result string) {
	if m == nil {
		return
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	m.recordsTotal.Add(ctx, int64(records))
	m.runDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("result", result)))
}
