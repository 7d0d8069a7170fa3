package embedder

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func ParseFile(path string) error"})
	require.NoError(t, err)
	second, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func ParseFile(path string) error"})
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)

	other, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func WriteFile(path string) error"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Vector, other.Vector)
}

func TestLocalProviderFillsEveryDimension(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "type Graph struct{}"})
	require.NoError(t, err)

	require.Len(t, emb.Vector, LocalDimension)
	var tail float64
	for _, v := range emb.Vector[LocalDimension/2:] {
		tail += math.Abs(float64(v))
	}
	assert.Greater(t, tail, 0.0, "second half of the vector should carry signal")
}

func TestLocalProviderVectorIsNormalized(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "normalize me"})
	require.NoError(t, err)

	var sum float64
	for _, v := range emb.Vector {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}

func TestLocalProviderBatchPreservesOrder(t *testing.T) {
	provider, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma"}
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)

	require.Len(t, resp.Embeddings, len(texts))
	for i, text := range texts {
		assert.Equal(t, ComputeHash(text), resp.Embeddings[i].Hash)
	}
	assert.Equal(t, ProviderLocal, resp.Provider)
}

func TestLocalProviderUsesCache(t *testing.T) {
	cache := NewCache(10)
	provider, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "cache me"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	cached, ok := cache.Get(ComputeHash("cache me"))
	require.True(t, ok)
	assert.Equal(t, LocalDimension, cached.Dimension)
}

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		result := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, result[0], 1e-6)
		assert.InDelta(t, 0.8, result[1], 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		zero := []float32{0, 0, 0}
		assert.Equal(t, zero, NormalizeVector(zero))
	})
}

func BenchmarkLocalProviderEmbedding(b *testing.B) {
	provider, _ := NewLocalProvider(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: fmt.Sprintf("func Handler%d() error", i)})
	}
}

func BenchmarkCacheGet(b *testing.B) {
	cache := NewCache(1000)
	emb := &Embedding{Vector: make([]float32, LocalDimension)}
	cache.Set("key", emb)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.Get("key")
	}
}
