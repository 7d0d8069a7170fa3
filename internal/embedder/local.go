package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// LocalProvider produces deterministic pseudo-embeddings without any
// network dependency. Identical texts map to identical vectors, so exact
// and near-duplicate chunks still cluster, but the vectors carry no real
// semantics. Search falls back to this provider when no API key is set.
type LocalProvider struct {
	model string
	cache *Cache
}

const localModelName = "local-hash-v1"

// NewLocalProvider creates the offline fallback embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: localModelName,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    NormalizeVector(hashVector(req.Text, LocalDimension)),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector derives a dim-length vector from text by hashing the text with
// an incrementing block counter until enough bytes are produced. Every
// component is populated, unlike a single digest which would only cover the
// first 32 dimensions.
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	var counter [8]byte

	for i := 0; i < dim; {
		binary.BigEndian.PutUint64(counter[:], uint64(i))
		block := sha256.Sum256(append([]byte(text), counter[:]...))
		for _, b := range block {
			if i >= dim {
				break
			}
			// Center around zero so the vector is not all-positive.
			vector[i] = (float32(b) - 127.5) / 127.5
			i++
		}
	}

	return vector
}

// NormalizeVector scales v to unit length for cosine similarity. The zero
// vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
