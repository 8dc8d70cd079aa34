package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

func newTestConfig() Config {
	return Config{
		MaxCost:        1000,
		NumCounters:    10_000,
		BufferItems:    64,
		DefaultTTL:     time.Minute,
		MetricsEnabled: true,
	}
}

func newTestStorage(t *testing.T) *MemoryStorage {
	t.Helper()
	s, err := NewMemoryStorage(newTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStorage_SetAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.Set(ctx, "prod||flag1", domain.FlagEntry{Key: "flag1", Value: true, Reason: "STATIC"}, 0)
	require.NoError(t, err)
	s.Wait()

	result, err := s.Get(ctx, "prod||flag1")
	require.NoError(t, err)
	assert.Equal(t, "flag1", result.Key)
	assert.True(t, result.Value)
}

func TestMemoryStorage_GetMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_Expiration(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "temp", domain.FlagEntry{Key: "temp"}, 10*time.Millisecond))
	s.Wait()

	time.Sleep(50 * time.Millisecond)

	_, err := s.Get(ctx, "temp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_DeleteAndClear(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", domain.FlagEntry{Key: "a"}, 0))
	require.NoError(t, s.Set(ctx, "b", domain.FlagEntry{Key: "b"}, 0))
	s.Wait()

	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_Metrics(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", domain.FlagEntry{Key: "a"}, 0))
	s.Wait()

	_, _ = s.Get(ctx, "a")
	_, _ = s.Get(ctx, "missing")

	metrics := s.Metrics()
	assert.Equal(t, uint64(1), metrics.KeysAdded)
	assert.Equal(t, uint64(1), metrics.Hits)
	assert.Equal(t, uint64(1), metrics.Misses)
	assert.InDelta(t, 0.5, metrics.HitRatio, 0.001)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "prod|user-1|new-ui",
		Key(domain.NewEvaluationContext("prod").WithTargetingKey("user-1"), "new-ui"))
	assert.Equal(t, "prod||new-ui", Key(domain.NewEvaluationContext("prod"), "new-ui"))
}
