package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRemote builds a RemoteProvider pointed at a local test server with
// a fast retry schedule.
func newTestRemote(t *testing.T, url string, cache *Cache) *RemoteProvider {
	t.Helper()
	return &RemoteProvider{
		api: endpoint{
			name:         ProviderJina,
			url:          url,
			defaultModel: DefaultJinaModel,
			dimension:    JinaDimension,
			envKey:       EnvJinaAPIKey,
		},
		apiKey:     "test-key",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cache,
		backoff:    backoffPolicy{attempts: 3, initial: time.Millisecond, max: 10 * time.Millisecond, factor: 2.0},
	}
}

func embeddingHandler(t *testing.T, vector []float32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": vector, "index": i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}
}

func TestRemoteProviderGenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(embeddingHandler(t, []float32{0.1, 0.2, 0.3}))
	defer server.Close()

	provider := newTestRemote(t, server.URL, nil)
	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "func ResolveCalls() error"})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, ProviderJina, emb.Provider)
}

func TestRemoteProviderGenerateBatch(t *testing.T) {
	server := httptest.NewServer(embeddingHandler(t, []float32{0.5, 0.5}))
	defer server.Close()

	provider := newTestRemote(t, server.URL, nil)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"type Store struct{}", "func (s *Store) Close() error"},
		Model: "custom-model",
	})
	require.NoError(t, err)

	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, ProviderJina, resp.Provider)
	assert.Equal(t, "custom-model", resp.Model)
}

func TestRemoteProviderRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		embeddingHandler(t, []float32{1})(w, r)
	}))
	defer server.Close()

	provider := newTestRemote(t, server.URL, nil)
	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "retry me"})
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []float32{1}, emb.Vector)
}

func TestRemoteProviderFailsAfterRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := newTestRemote(t, server.URL, nil)
	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "always fails"})

	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteProviderCacheSkipsAPICall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		embeddingHandler(t, []float32{0.7})(w, r)
	}))
	defer server.Close()

	provider := newTestRemote(t, server.URL, NewCache(10))

	first, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "cached chunk"})
	require.NoError(t, err)
	second, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "cached chunk"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestRemoteProviderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := newTestRemote(t, server.URL, nil)
	_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cancelled"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteProviderRejectsInvalidRequests(t *testing.T) {
	provider := newTestRemote(t, "http://unused", nil)

	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewRemoteProviderRequiresKey(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	_, err := newRemoteProvider(ProviderJina, "", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = newRemoteProvider(ProviderOpenAI, "", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestRemoteProviderMetadata(t *testing.T) {
	jina, err := newRemoteProvider(ProviderJina, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, JinaDimension, jina.Dimension())
	assert.Equal(t, ProviderJina, jina.Provider())
	assert.Equal(t, DefaultJinaModel, jina.Model())
	assert.NoError(t, jina.Close())

	openai, err := newRemoteProvider(ProviderOpenAI, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, OpenAIDimension, openai.Dimension())
	assert.Equal(t, DefaultOpenAIModel, openai.Model())
}
