package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

var stateTestEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStateStoreAt(at time.Time) (*IndexStateStore, *time.Time) {
	store := NewIndexStateStore()
	now := at
	store.SetClock(func() time.Time { return now })
	return store, &now
}

func TestIndexStateStore_MarkPending(t *testing.T) {
	t.Run("creates a due pending entry", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()

		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, entry.State)
		assert.Equal(t, 0, entry.Attempts)
		assert.True(t, entry.Due(stateTestEpoch))
	})

	t.Run("resets attempts and state", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()

		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.MarkFailed(ctx, "doc-1", "tok", "boom"))

		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, entry.State)
		assert.Equal(t, 0, entry.Attempts)
	})

	t.Run("leaves a live claim untouched", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()

		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateEmbedding, entry.State)
		assert.Equal(t, "tok", entry.ClaimToken)

		// The owner's token still completes the cycle.
		assert.NoError(t, store.Complete(ctx, "doc-1", "tok"))
	})

	t.Run("demotes an expired claim", func(t *testing.T) {
		store, now := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()

		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		*now = stateTestEpoch.Add(2 * time.Minute)
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, entry.State)
		assert.Empty(t, entry.ClaimToken)
	})
}

func TestIndexStateStore_Claim(t *testing.T) {
	t.Run("claims a due pending entry", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		entry, err := store.Claim(ctx, "doc-1", "tok-1", stateTestEpoch.Add(time.Minute))

		require.NoError(t, err)
		assert.Equal(t, domain.StateEmbedding, entry.State)
		assert.Equal(t, "tok-1", entry.ClaimToken)
	})

	t.Run("unknown document", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)

		_, err := store.Claim(context.Background(), "missing", "tok", stateTestEpoch.Add(time.Minute))

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("second claim is refused while the first is live", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		_, err := store.Claim(ctx, "doc-1", "tok-1", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		_, err = store.Claim(ctx, "doc-1", "tok-2", stateTestEpoch.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrClaimHeld)
	})

	t.Run("expired claim can be taken over", func(t *testing.T) {
		store, now := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		_, err := store.Claim(ctx, "doc-1", "tok-1", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		*now = stateTestEpoch.Add(2 * time.Minute)

		entry, err := store.Claim(ctx, "doc-1", "tok-2", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "tok-2", entry.ClaimToken)

		// The original worker's token is dead: its completion is refused.
		assert.ErrorIs(t, store.Complete(ctx, "doc-1", "tok-1"), domain.ErrClaimHeld)
	})

	t.Run("pending entry with future retry is not due", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		_, err := store.Claim(ctx, "doc-1", "tok-1", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Retry(ctx, "doc-1", "tok-1", "transient", stateTestEpoch.Add(time.Hour)))

		_, err = store.Claim(ctx, "doc-1", "tok-2", stateTestEpoch.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrClaimHeld)
	})

	t.Run("stored and failed entries cannot be claimed", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()

		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "doc-1", "tok"))

		_, err = store.Claim(ctx, "doc-1", "tok-2", stateTestEpoch.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrClaimHeld)
	})
}

func TestIndexStateStore_Transitions(t *testing.T) {
	t.Run("complete requires the claim token", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		assert.ErrorIs(t, store.Complete(ctx, "doc-1", "wrong"), domain.ErrClaimHeld)
		require.NoError(t, store.Complete(ctx, "doc-1", "tok"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateStored, entry.State)
		assert.Empty(t, entry.ClaimToken)
		assert.Empty(t, entry.LastError)
	})

	t.Run("retry increments attempts and records the error", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		retryAt := stateTestEpoch.Add(30 * time.Second)
		require.NoError(t, store.Retry(ctx, "doc-1", "tok", "connection refused", retryAt))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, entry.State)
		assert.Equal(t, 1, entry.Attempts)
		assert.Equal(t, retryAt, entry.NextRetryAt)
		assert.Equal(t, "connection refused", entry.LastError)
	})

	t.Run("mark failed is terminal until re-marked pending", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))
		_, err := store.Claim(ctx, "doc-1", "tok", stateTestEpoch.Add(time.Minute))
		require.NoError(t, err)

		require.NoError(t, store.MarkFailed(ctx, "doc-1", "tok", "model rejected input"))

		entry, err := store.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateFailed, entry.State)
		assert.Equal(t, "model rejected input", entry.LastError)
		assert.False(t, entry.Due(stateTestEpoch.Add(time.Hour)))
	})

	t.Run("transitions without a claim are refused", func(t *testing.T) {
		store, _ := newStateStoreAt(stateTestEpoch)
		ctx := context.Background()
		require.NoError(t, store.MarkPending(ctx, "doc-1"))

		assert.ErrorIs(t, store.Complete(ctx, "doc-1", "tok"), domain.ErrClaimHeld)
		assert.ErrorIs(t, store.Retry(ctx, "doc-1", "tok", "x", stateTestEpoch), domain.ErrClaimHeld)
		assert.ErrorIs(t, store.MarkFailed(ctx, "doc-1", "tok", "x"), domain.ErrClaimHeld)
	})
}

func TestIndexStateStore_ListDue(t *testing.T) {
	store, now := newStateStoreAt(stateTestEpoch)
	ctx := context.Background()

	// doc-a: due pending. doc-b: backoff in the future. doc-c: stored.
	// doc-d: expired claim. doc-e: live claim.
	require.NoError(t, store.MarkPending(ctx, "doc-a"))

	require.NoError(t, store.MarkPending(ctx, "doc-b"))
	_, err := store.Claim(ctx, "doc-b", "tok-b", now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Retry(ctx, "doc-b", "tok-b", "x", now.Add(time.Hour)))

	require.NoError(t, store.MarkPending(ctx, "doc-c"))
	_, err = store.Claim(ctx, "doc-c", "tok-c", now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "doc-c", "tok-c"))

	require.NoError(t, store.MarkPending(ctx, "doc-d"))
	_, err = store.Claim(ctx, "doc-d", "tok-d", now.Add(time.Second))
	require.NoError(t, err)

	require.NoError(t, store.MarkPending(ctx, "doc-e"))
	_, err = store.Claim(ctx, "doc-e", "tok-e", now.Add(time.Hour))
	require.NoError(t, err)

	at := stateTestEpoch.Add(time.Minute)
	due, err := store.ListDue(ctx, at, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, entry := range due {
		ids = append(ids, entry.DocumentID)
	}
	assert.ElementsMatch(t, []string{"doc-a", "doc-d"}, ids)

	t.Run("respects the limit", func(t *testing.T) {
		due, err := store.ListDue(ctx, at, 1)
		require.NoError(t, err)
		assert.Len(t, due, 1)
	})
}

func TestIndexStateStore_Delete(t *testing.T) {
	store, _ := newStateStoreAt(stateTestEpoch)
	ctx := context.Background()

	require.NoError(t, store.MarkPending(ctx, "doc-1"))
	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err := store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "doc-1"))
}
