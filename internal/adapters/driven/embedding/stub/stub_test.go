package stub

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(vector []float32) float64 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestProvider_New(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		provider := New(0, "")
		assert.Equal(t, DefaultDimensions, provider.Dimensions())
		assert.Equal(t, "stub-v1", provider.ModelVersion())
	})

	t.Run("explicit configuration", func(t *testing.T) {
		provider := New(16, "stub-v2")
		assert.Equal(t, 16, provider.Dimensions())
		assert.Equal(t, "stub-v2", provider.ModelVersion())
	})
}

func TestProvider_Embed(t *testing.T) {
	ctx := context.Background()

	t.Run("deterministic for identical text", func(t *testing.T) {
		provider := New(32, "")

		first, err := provider.Embed(ctx, "deterministic text")
		require.NoError(t, err)
		second, err := provider.Embed(ctx, "deterministic text")
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("normalised variants embed identically", func(t *testing.T) {
		provider := New(32, "")

		plain, err := provider.Embed(ctx, "hello world")
		require.NoError(t, err)
		shouty, err := provider.Embed(ctx, "  Hello   WORLD  ")
		require.NoError(t, err)

		assert.Equal(t, plain, shouty)
	})

	t.Run("different texts embed differently", func(t *testing.T) {
		provider := New(32, "")

		alpha, err := provider.Embed(ctx, "alpha")
		require.NoError(t, err)
		beta, err := provider.Embed(ctx, "beta")
		require.NoError(t, err)

		assert.NotEqual(t, alpha, beta)
	})

	t.Run("vectors are unit length", func(t *testing.T) {
		provider := New(100, "")

		vector, err := provider.Embed(ctx, "unit length check")
		require.NoError(t, err)

		require.Len(t, vector, 100)
		assert.InDelta(t, 1.0, vectorNorm(vector), 1e-5)
	})
}

func TestProvider_Pin(t *testing.T) {
	ctx := context.Background()

	t.Run("pinned text returns the fixture", func(t *testing.T) {
		provider := New(3, "")
		provider.Pin("alpha", []float32{1, 0, 0})

		vector, err := provider.Embed(ctx, "alpha")

		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, vector)
	})

	t.Run("pin matches after normalisation", func(t *testing.T) {
		provider := New(3, "")
		provider.Pin("Alpha  Query", []float32{0, 1, 0})

		vector, err := provider.Embed(ctx, "  alpha query ")

		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0}, vector)
	})

	t.Run("fixture is insulated from caller mutation", func(t *testing.T) {
		provider := New(3, "")
		pinned := []float32{1, 0, 0}
		provider.Pin("alpha", pinned)
		pinned[0] = -1

		vector, err := provider.Embed(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, vector)

		vector[1] = 9
		again, err := provider.Embed(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, again)
	})
}

func TestProvider_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	provider := New(8, "")

	vectors, err := provider.EmbedBatch(ctx, []string{"one", "two", "one"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestProvider_Ping(t *testing.T) {
	provider := New(0, "")
	assert.NoError(t, provider.Ping(context.Background()))
	assert.NoError(t, provider.Close())
}
