package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

func sampleResults() []domain.QueryResult {
	return []domain.QueryResult{
		{DocumentID: "doc-1", Score: 0.95, Rank: 1},
		{DocumentID: "doc-2", Score: 0.80, Rank: 2},
	}
}

func TestCache_GetPut(t *testing.T) {
	ctx := context.Background()

	t.Run("miss on unknown fingerprint", func(t *testing.T) {
		cache := NewCache()

		_, err := cache.Get(ctx, "fp-unknown")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		cache := NewCache()
		require.NoError(t, cache.Put(ctx, "fp-1", sampleResults(), time.Minute))

		got, err := cache.Get(ctx, "fp-1")

		require.NoError(t, err)
		assert.Equal(t, sampleResults(), got)
	})

	t.Run("put replaces an existing entry", func(t *testing.T) {
		cache := NewCache()
		require.NoError(t, cache.Put(ctx, "fp-1", sampleResults(), time.Minute))
		require.NoError(t, cache.Put(ctx, "fp-1", sampleResults()[:1], time.Minute))

		got, err := cache.Get(ctx, "fp-1")

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("stored slice is insulated from the caller", func(t *testing.T) {
		cache := NewCache()
		results := sampleResults()
		require.NoError(t, cache.Put(ctx, "fp-1", results, time.Minute))

		results[0].DocumentID = "mutated"

		got, err := cache.Get(ctx, "fp-1")
		require.NoError(t, err)
		assert.Equal(t, "doc-1", got[0].DocumentID)

		got[1].DocumentID = "also-mutated"
		again, err := cache.Get(ctx, "fp-1")
		require.NoError(t, err)
		assert.Equal(t, "doc-2", again[1].DocumentID)
	})
}

func TestCache_TTL(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache := NewCache()
	now := start
	cache.SetClock(func() time.Time { return now })

	require.NoError(t, cache.Put(ctx, "fp-1", sampleResults(), time.Minute))

	t.Run("live before expiry", func(t *testing.T) {
		now = start.Add(59 * time.Second)
		_, err := cache.Get(ctx, "fp-1")
		assert.NoError(t, err)
	})

	t.Run("expired entry is dropped", func(t *testing.T) {
		now = start.Add(2 * time.Minute)
		_, err := cache.Get(ctx, "fp-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 0, cache.Len())
	})
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()

	require.NoError(t, cache.Put(ctx, "fp-1", sampleResults(), time.Minute))
	require.NoError(t, cache.Put(ctx, "fp-2", sampleResults(), time.Minute))
	require.Equal(t, 2, cache.Len())

	// Invalidation is coarse: any document write drops every entry.
	require.NoError(t, cache.Invalidate(ctx, "doc-1"))

	assert.Equal(t, 0, cache.Len())
	_, err := cache.Get(ctx, "fp-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = cache.Get(ctx, "fp-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCache_PingAndClose(t *testing.T) {
	cache := NewCache()
	assert.NoError(t, cache.Ping(context.Background()))
	assert.NoError(t, cache.Close())
}
