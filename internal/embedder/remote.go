package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Provider names and their model defaults.
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384
)

const remoteTimeout = 30 * time.Second

// endpoint describes one hosted embedding API. Jina and OpenAI share the
// same request and response shape, so a single client covers both.
type endpoint struct {
	name         string
	url          string
	defaultModel string
	dimension    int
	envKey       string
}

var endpoints = map[string]endpoint{
	ProviderJina: {
		name:         ProviderJina,
		url:          "https://api.jina.ai/v1/embeddings",
		defaultModel: DefaultJinaModel,
		dimension:    JinaDimension,
		envKey:       EnvJinaAPIKey,
	},
	ProviderOpenAI: {
		name:         ProviderOpenAI,
		url:          "https://api.openai.com/v1/embeddings",
		defaultModel: DefaultOpenAIModel,
		dimension:    OpenAIDimension,
		envKey:       EnvOpenAIAPIKey,
	},
}

// RemoteProvider implements Embedder against a hosted embedding API.
type RemoteProvider struct {
	api        endpoint
	apiKey     string
	httpClient *http.Client
	cache      *Cache
	backoff    backoffPolicy
}

// newRemoteProvider builds a client for the named endpoint. An empty apiKey
// falls back to the endpoint's environment variable.
func newRemoteProvider(provider, apiKey string, cache *Cache) (*RemoteProvider, error) {
	api, ok := endpoints[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
	}
	if apiKey == "" {
		apiKey = os.Getenv(api.envKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, api.envKey)
	}

	return &RemoteProvider{
		api:        api,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: remoteTimeout},
		cache:      cache,
		backoff:    defaultBackoff,
	}, nil
}

func (p *RemoteProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *RemoteProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.api.defaultModel
	}

	var embeddings []*Embedding
	err := p.backoff.run(ctx, func() error {
		var callErr error
		embeddings, callErr = p.callAPI(ctx, req.Texts, model)
		return callErr
	})
	if err != nil {
		// Cancellation is the caller's doing, not a provider failure.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, p.backoff.attempts, err)
	}

	if p.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Texts[i])
			emb.Hash = hash
			p.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.api.name,
		Model:      model,
	}, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.api.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(msg))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.api.name,
			Model:     apiResp.Model,
		}
	}

	return embeddings, nil
}

func (p *RemoteProvider) Dimension() int {
	return p.api.dimension
}

func (p *RemoteProvider) Provider() string {
	return p.api.name
}

func (p *RemoteProvider) Model() string {
	return p.api.defaultModel
}

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
