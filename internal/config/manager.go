package config

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns the live configuration. Dispatch paths read immutable
// snapshots, so a concurrent save can never tear a half-updated toggle set.
type Manager struct {
	store Store

	mu      sync.RWMutex
	current Config
}

// NewManager creates a Manager and loads the persisted configuration.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("config store is required")
	}

	cfg, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Manager{
		store:   store,
		current: *cfg,
	}, nil
}

// Snapshot returns a copy of the current configuration. Callers capture one
// snapshot per dispatch; staleness is acceptable, torn reads are not.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update validates, persists and swaps in a new configuration.
func (m *Manager) Update(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to persist configuration: %w", err)
	}
	m.current = cfg

	return nil
}

// SetSyncHistory updates the backfill trigger and persists the change. Used
// by the backfill reconciler to disarm itself after a completed run.
func (m *Manager) SetSyncHistory(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.current
	cfg.SyncHistory = enabled
	if err := m.store.Save(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to persist configuration: %w", err)
	}
	m.current = cfg

	return nil
}
