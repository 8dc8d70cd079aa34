package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// MemoryStorage wraps Ristretto for resolution caching
type MemoryStorage struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

// NewMemoryStorage creates a new memory store
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
		Metrics:     config.MetricsEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &MemoryStorage{
		cache:      cache,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get retrieves an entry by key
func (m *MemoryStorage) Get(ctx context.Context, key string) (*domain.FlagEntry, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}

	entry, ok := value.(domain.FlagEntry)
	if !ok {
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Set stores an entry. Writes are buffered; the entry is visible once
// ristretto admits it.
func (m *MemoryStorage) Set(ctx context.Context, key string, entry domain.FlagEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	if !m.cache.SetWithTTL(key, entry, 1, ttl) {
		return fmt.Errorf("entry %q rejected by cache", key)
	}

	return nil
}

// Delete removes an entry
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.cache.Del(key)
	return nil
}

// Clear removes all entries
func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.cache.Clear()
	return nil
}

// Wait waits for pending writes to complete
func (m *MemoryStorage) Wait() {
	m.cache.Wait()
}

// Metrics returns cache metrics
func (m *MemoryStorage) Metrics() Metrics {
	metrics := m.cache.Metrics
	if metrics == nil {
		return Metrics{}
	}

	return Metrics{
		KeysAdded:   metrics.KeysAdded(),
		KeysUpdated: metrics.KeysUpdated(),
		KeysEvicted: metrics.KeysEvicted(),
		Hits:        metrics.Hits(),
		Misses:      metrics.Misses(),
		HitRatio:    metrics.Ratio(),
	}
}

// Close closes the store
func (m *MemoryStorage) Close() error {
	m.cache.Close()
	return nil
}
