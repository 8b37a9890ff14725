// Package config provides configuration loading, validation and persistence
// for the subscription sync bridge.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config represents the bridge configuration.
//
// The toggle fields default to true so a freshly configured bridge mirrors
// every change; only the global Enabled switch and the backfill trigger
// start off.
type Config struct {
	// Enabled controls whether change propagation is enabled globally.
	// When false, every dispatch is a no-op regardless of other toggles.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RemoteURL is the endpoint that receives subscription changes.
	// An empty value means the bridge is not fully configured yet; deliveries
	// are silently skipped rather than treated as errors.
	RemoteURL string `yaml:"remoteUrl" json:"remote_url"`

	// APIKey authenticates the bridge against the remote endpoint. It is
	// embedded in the request body rather than sent as a header.
	APIKey string `yaml:"apiKey" json:"api_key"`

	// SyncAdd controls whether subscription additions are propagated.
	SyncAdd bool `yaml:"syncAdd" json:"sync_add"`

	// SyncDelete controls whether subscription removals are propagated.
	SyncDelete bool `yaml:"syncDelete" json:"sync_delete"`

	// SyncMovie controls whether movie subscriptions are propagated.
	SyncMovie bool `yaml:"syncMovie" json:"sync_movie"`

	// SyncTV controls whether series subscriptions are propagated.
	SyncTV bool `yaml:"syncTv" json:"sync_tv"`

	// SyncHistory arms the one-shot backfill of all existing subscriptions.
	// The backfill reconciler flips it back to false and persists the change
	// once the run finishes, so the job never re-triggers on restart.
	SyncHistory bool `yaml:"syncHistory" json:"sync_history"`
}

// Default returns a Config with the default toggle values applied.
func Default() *Config {
	return &Config{
		SyncAdd:    true,
		SyncDelete: true,
		SyncMovie:  true,
		SyncTV:     true,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RemoteURL) == "" {
		return nil
	}

	parsed, err := url.Parse(c.RemoteURL)
	if err != nil {
		return fmt.Errorf("invalid remote URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("remote URL must use http or https scheme, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("remote URL is missing a host: %s", c.RemoteURL)
	}

	return nil
}
