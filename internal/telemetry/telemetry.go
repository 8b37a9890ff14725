package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry bundles the meter provider with the instruments built on it and
// owns their shutdown.
type Telemetry struct {
	meterProvider metric.MeterProvider

	Dispatch *DispatchMetrics
	Backfill *BackfillMetrics
}

// New initializes telemetry from the given configuration. When cfg.Enabled is
// false the returned Telemetry carries a no-op provider and nil instruments,
// so callers can record unconditionally.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := NewMeterProvider(ctx,
		WithMeterEnabled(cfg.Enabled),
		WithMeterServiceName(cfg.GetServiceName()),
		WithMeterServiceVersion(cfg.GetServiceVersion()),
		WithMeterEndpoint(cfg.GetEndpoint()),
		WithMeterInsecure(cfg.Insecure),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	tel := &Telemetry{meterProvider: provider}

	if !cfg.Enabled {
		return tel, nil
	}

	tel.Dispatch, err = NewDispatchMetrics(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch metrics: %w", err)
	}

	tel.Backfill, err = NewBackfillMetrics(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create backfill metrics: %w", err)
	}

	slog.Info("Telemetry initialized",
		"service_name", cfg.GetServiceName(),
		"endpoint", cfg.GetEndpoint())

	return tel, nil
}

// MeterProvider returns the underlying provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Shutdown flushes and stops the SDK provider, if one was created.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if provider, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		return provider.Shutdown(ctx)
	}
	return nil
}
