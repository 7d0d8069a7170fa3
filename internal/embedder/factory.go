package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvProvider     = "SYMDEX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// NewFromEnv builds an embedder from the environment. SYMDEX_EMBEDDING_PROVIDER
// picks a provider explicitly; otherwise the first API key found wins, Jina
// before OpenAI, and the local provider is the final fallback.
func NewFromEnv() (Embedder, error) {
	cache := NewCache(defaultCacheSize)

	if provider := strings.ToLower(os.Getenv(EnvProvider)); provider != "" {
		switch provider {
		case ProviderJina, ProviderOpenAI:
			return newRemoteProvider(provider, "", cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return newRemoteProvider(ProviderJina, "", cache)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return newRemoteProvider(ProviderOpenAI, "", cache)
	}

	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch provider := strings.ToLower(cfg.Provider); provider {
	case ProviderJina, ProviderOpenAI:
		return newRemoteProvider(provider, cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider reports which provider NewFromEnv would pick, without
// building it.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
