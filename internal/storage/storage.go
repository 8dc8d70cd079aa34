// Package storage caches single-flag resolutions for a short TTL.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// ErrNotFound is returned when a key is absent or expired
var ErrNotFound = errors.New("entry not found")

// Storage defines the interface for resolution caching
type Storage interface {
	// Get retrieves a cached entry by key
	Get(ctx context.Context, key string) (*domain.FlagEntry, error)

	// Set stores an entry with optional TTL (0 uses the default)
	Set(ctx context.Context, key string, entry domain.FlagEntry, ttl time.Duration) error

	// Delete removes an entry
	Delete(ctx context.Context, key string) error

	// Clear removes all entries
	Clear(ctx context.Context) error

	// Metrics returns storage metrics
	Metrics() Metrics

	// Close closes the storage
	Close() error
}

// Metrics represents storage metrics
type Metrics struct {
	KeysAdded   uint64
	KeysUpdated uint64
	KeysEvicted uint64

	Hits     uint64
	Misses   uint64
	HitRatio float64
}

// Config holds storage configuration
type Config struct {
	// Memory limits
	MaxCost     int64 // Maximum number of cached entries
	NumCounters int64 // Number of counters for admission policy
	BufferItems int64 // Number of keys per buffer

	// TTL
	DefaultTTL time.Duration

	// Metrics
	MetricsEnabled bool
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		MaxCost:        10_000,
		NumCounters:    100_000,
		BufferItems:    64,
		DefaultTTL:     30 * time.Second,
		MetricsEnabled: true,
	}
}

// Key builds the cache key for one resolution
func Key(evalCtx domain.EvaluationContext, flagKey string) string {
	return strings.Join([]string{evalCtx.Scope, evalCtx.TargetingKey, flagKey}, "|")
}
