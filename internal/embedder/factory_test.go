package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{name: "explicit jina", provider: "jina", want: ProviderJina},
		{name: "explicit openai", provider: "openai", want: ProviderOpenAI},
		{name: "explicit local", provider: "local", want: ProviderLocal},
		{name: "explicit is case insensitive", provider: "JINA", want: ProviderJina},
		{name: "jina key present", jinaKey: "k", want: ProviderJina},
		{name: "openai key present", openaiKey: "k", want: ProviderOpenAI},
		{name: "jina wins over openai", jinaKey: "k", openaiKey: "k", want: ProviderJina},
		{name: "nothing set falls back to local", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)

			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("no configuration yields local provider", func(t *testing.T) {
		clearProviderEnv(t)

		emb, err := NewFromEnv()
		require.NoError(t, err)
		defer emb.Close()

		assert.Equal(t, ProviderLocal, emb.Provider())
		assert.Equal(t, LocalDimension, emb.Dimension())
	})

	t.Run("explicit remote provider with key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "jina")
		t.Setenv(EnvJinaAPIKey, "test-key")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		defer emb.Close()

		assert.Equal(t, ProviderJina, emb.Provider())
	})

	t.Run("explicit remote provider without key fails", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "openai")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider fails", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "mystery")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("key alone selects the matching provider", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvOpenAIAPIKey, "test-key")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		defer emb.Close()

		assert.Equal(t, ProviderOpenAI, emb.Provider())
	})
}

func TestNew(t *testing.T) {
	clearProviderEnv(t)

	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantProv string
	}{
		{name: "jina with key", cfg: Config{Provider: ProviderJina, APIKey: "k", CacheSize: 100}, wantProv: ProviderJina},
		{name: "openai with key", cfg: Config{Provider: ProviderOpenAI, APIKey: "k", CacheSize: 100}, wantProv: ProviderOpenAI},
		{name: "local needs no key", cfg: Config{Provider: ProviderLocal, CacheSize: 50}, wantProv: ProviderLocal},
		{name: "case insensitive", cfg: Config{Provider: "OpenAI", APIKey: "k"}, wantProv: ProviderOpenAI},
		{name: "remote without key", cfg: Config{Provider: ProviderJina}, wantErr: true},
		{name: "unknown provider", cfg: Config{Provider: "mystery"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.wantProv, emb.Provider())
		})
	}
}
