// Package config defines the daemon configuration and its loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load layers defaults, an optional YAML file, then environment.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"

	"github.com/singpath/progressd/pkg/stream"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// OpsAddr configures the operational HTTP listen address.
	OpsAddr string `koanf:"ops_addr"`

	// OwnerPublicID selects whose events the daemon monitors.
	OwnerPublicID string `koanf:"owner_public_id"`

	// ListOnly stops after the initial backlog instead of watching.
	ListOnly bool `koanf:"list_only"`

	// FlushIntervalMS is the patch coalescing window.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// Evaluation retry policy: delay before retry n is
	// base × (n × increment)^exponent.
	RetryAttempts    int     `koanf:"retry_attempts"`
	RetryBaseDelayMS int     `koanf:"retry_base_delay_ms"`
	RetryIncrement   float64 `koanf:"retry_increment"`
	RetryExponent    float64 `koanf:"retry_exponent"`

	// CacheTTLMS bounds how long provider responses are reused.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	// Provider endpoints.
	CodeCombatURL     string `koanf:"codecombat_url"`
	CodeSchoolURL     string `koanf:"codeschool_url"`
	ProviderTimeoutMS int    `koanf:"provider_timeout_ms"`

	// SeedFile optionally preloads the feed from a JSON document of
	// path -> value pairs.
	SeedFile string `koanf:"seed_file"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		OpsAddr:           ":9080",
		FlushIntervalMS:   500,
		RetryAttempts:     5,
		RetryBaseDelayMS:  1000,
		RetryIncrement:    1,
		RetryExponent:     3,
		CacheTTLMS:        60_000,
		CodeCombatURL:     "https://codecombat.com",
		CodeSchoolURL:     "https://www.codeschool.com",
		ProviderTimeoutMS: 10_000,
	}
}

// FlushInterval returns the patch coalescing window as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// CacheTTL returns the provider cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

// ProviderTimeout returns the provider HTTP timeout as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

// RetryBackoff returns the evaluation retry delay curve.
func (c *Config) RetryBackoff() stream.Backoff {
	return stream.Backoff{
		Base:      time.Duration(c.RetryBaseDelayMS) * time.Millisecond,
		Increment: c.RetryIncrement,
		Exponent:  c.RetryExponent,
	}
}
