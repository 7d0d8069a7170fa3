// Package embedder turns chunk text into vectors for the semantic
// search source.
//
// Embedder is the provider interface; two implementations ship:
// RemoteProvider, one HTTP client covering both the Jina AI and
// OpenAI endpoints (they share a wire format), and LocalProvider, a
// deterministic hasher that needs no network or API key. NewFromEnv
// picks one:
//
//  1. SYMDEX_EMBEDDING_PROVIDER, if set, names the provider
//  2. else JINA_API_KEY selects Jina
//  3. else OPENAI_API_KEY selects OpenAI
//  4. else the local provider is used
//
// The local fallback means an index can always be built offline; the
// semantic source simply carries lower-quality vectors. Callers that
// get an error from NewFromEnv run without an embedder at all and
// report semantic search as degraded rather than failing.
//
// RemoteProvider batches requests (GenerateBatch), retries transient
// HTTP failures with exponential backoff (backoffPolicy), and shares
// an LRU-backed Cache keyed by ComputeHash of the chunk text, so
// unchanged chunks are never re-embedded within a process.
//
// All vectors are L2-normalized (NormalizeVector) before storage so
// cosine similarity reduces to a dot product at query time.
package embedder
