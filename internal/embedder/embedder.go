package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// MaxBatchSize is the largest number of texts accepted in one batch call.
const MaxBatchSize = 100

// Embedding is a vector produced for one piece of text, tagged with the
// provider and model that produced it so mixed-dimension vectors are never
// compared against each other.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // content hash, used as the cache key
}

// EmbeddingRequest asks for a single embedding.
type EmbeddingRequest struct {
	Text  string
	Model string // empty means the provider default
}

// BatchEmbeddingRequest asks for embeddings over several texts in one call.
type BatchEmbeddingRequest struct {
	Texts []string
	Model string // empty means the provider default
}

// BatchEmbeddingResponse carries the embeddings in the same order as the
// request texts.
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns text into vectors. Implementations are safe for concurrent
// use.
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text.
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts in one call.
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the vector length this provider produces.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

func (r EmbeddingRequest) validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	return nil
}

func (r BatchEmbeddingRequest) validate() error {
	if len(r.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(r.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	for i, text := range r.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// ComputeHash returns the hex SHA-256 of text. Cached embeddings are keyed
// by this hash.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
