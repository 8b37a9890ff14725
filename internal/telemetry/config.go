// Package telemetry provides OpenTelemetry instrumentation for the
// subscription sync bridge. Metrics are exported over OTLP/HTTP.
package telemetry

import (
	"fmt"
	"strings"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "subsyncd"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"
)

// Config represents the telemetry configuration.
type Config struct {
	// Enabled controls whether telemetry is enabled globally.
	// When false, no providers are initialized and all instruments no-op.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this service in exported telemetry.
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion is the version reported with exported telemetry.
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint, "host:port" without scheme.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP connections to the collector. Should only
	// be true for development environments.
	Insecure bool `yaml:"insecure,omitempty"`
}

// GetServiceName returns the service name, using the default if unset.
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, "unknown" if unset.
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint, using the default if unset.
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// Validate checks the telemetry configuration for consistency.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("telemetry endpoint must be host:port without a scheme, got %q", c.Endpoint)
	}
	return nil
}
