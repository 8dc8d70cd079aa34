package flare

import (
	"strings"
	"time"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// Config holds all configuration for a Flare client.
type Config struct {
	// Service configures the connection to the Flare evaluation service
	Service ServiceConfig

	// Snapshot configures the background synchronizer
	Snapshot SnapshotConfig

	// Filter configures which flags enter the snapshot
	Filter FilterConfig

	// Cache configures the single-flag resolution cache
	Cache CacheConfig
}

// ServiceConfig configures the connection to Flare.
type ServiceConfig struct {
	// BaseURL is the base URL of the Flare service
	// Example: "https://flare.example.com"
	BaseURL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout for HTTP requests to Flare
	Timeout time.Duration

	// MaxRetries for requests failing with a network error, 5xx or 429
	MaxRetries int

	// RetryBackoff is multiplied by the attempt number between retries
	RetryBackoff time.Duration
}

// SnapshotConfig configures the poller.
type SnapshotConfig struct {
	// Scope every evaluate-all request is made for. Required.
	Scope string

	// Section prefixes every snapshot key ("{section}:{flagKey}")
	Section string

	// ReloadInterval between polls. Zero fetches once and never again.
	ReloadInterval time.Duration

	// FetchTimeout bounds a single poll
	FetchTimeout time.Duration
}

// FilterConfig narrows the snapshot.
type FilterConfig struct {
	// OnlyEnabled drops flags that evaluate to false
	OnlyEnabled bool

	// Expression is an expr-lang boolean over key, value, variant, reason
	// and scopeAlias. Entries for which it is false are dropped.
	Expression string
}

// CacheConfig configures the resolution cache.
type CacheConfig struct {
	// TTL of a cached resolution. Zero disables the cache.
	TTL time.Duration

	// MaxEntries bounds the number of cached resolutions
	MaxEntries int64
}

// DefaultConfig returns recommended default configuration.
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			Timeout:      5 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			Section:        domain.DefaultSection,
			ReloadInterval: 30 * time.Second,
			FetchTimeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries: 10_000,
		},
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	return c.validate(true)
}

// validate skips the BaseURL check when a custom RemoteClient is used.
func (c Config) validate(requireBaseURL bool) error {
	if requireBaseURL && strings.TrimSpace(c.Service.BaseURL) == "" {
		return &ConfigError{Field: "Service.BaseURL", Message: "cannot be empty"}
	}
	if c.Service.Timeout <= 0 {
		return &ConfigError{Field: "Service.Timeout", Message: "must be positive"}
	}
	if c.Service.MaxRetries < 0 {
		return &ConfigError{Field: "Service.MaxRetries", Message: "cannot be negative"}
	}
	if c.Service.RetryBackoff < 0 {
		return &ConfigError{Field: "Service.RetryBackoff", Message: "cannot be negative"}
	}
	if strings.TrimSpace(c.Snapshot.Scope) == "" {
		return &ConfigError{Field: "Snapshot.Scope", Message: "cannot be empty"}
	}
	if c.Snapshot.ReloadInterval < 0 {
		return &ConfigError{Field: "Snapshot.ReloadInterval", Message: "cannot be negative"}
	}
	if c.Snapshot.FetchTimeout < 0 {
		return &ConfigError{Field: "Snapshot.FetchTimeout", Message: "cannot be negative"}
	}
	if c.Cache.TTL < 0 {
		return &ConfigError{Field: "Cache.TTL", Message: "cannot be negative"}
	}
	if c.Cache.TTL > 0 && c.Cache.MaxEntries <= 0 {
		return &ConfigError{Field: "Cache.MaxEntries", Message: "must be positive when the cache is enabled"}
	}
	return nil
}
