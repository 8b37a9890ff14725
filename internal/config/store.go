package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store defines the interface for configuration persistence.
type Store interface {
	// Load reads the persisted configuration. Returns the defaults if no
	// configuration has been saved yet (first run).
	Load(ctx context.Context) (*Config, error)

	// Save writes the configuration to persistent storage.
	Save(ctx context.Context, cfg *Config) error
}

// fileStore implements Store using a YAML file on the local filesystem.
type fileStore struct {
	path string
}

// NewFileStore creates a new file-backed configuration store.
func NewFileStore(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return &fileStore{path: filepath.Clean(path)}, nil
}

// Load reads the configuration from the YAML file. Unset fields keep their
// default values, matching the behavior of a partially saved form.
func (f *fileStore) Load(_ context.Context) (*Config, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", f.path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", f.path, err)
	}

	return cfg, nil
}

// Save writes the configuration to the YAML file using a temporary file and
// an atomic rename, so a crash mid-write never leaves a torn config behind.
func (f *fileStore) Save(_ context.Context, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}
