package embedder

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 10000

// Cache is an LRU cache of embeddings keyed by content hash. Re-embedding
// the same chunk text across incremental index runs is the common case, so
// hits are cheap wins.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding at most maxLen embeddings. Non-positive
// sizes fall back to the default.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](defaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Get returns a copy of the cached embedding for hash. The vector is copied
// so callers cannot mutate the cached value through the returned slice.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}

	vector := make([]float32, len(emb.Vector))
	copy(vector, emb.Vector)

	out := *emb
	out.Vector = vector
	return &out, true
}

// Set stores an embedding, evicting the least recently used entry when full.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.entries.Add(hash, emb)
}

// Size returns the number of cached embeddings.
func (c *Cache) Size() int {
	return c.entries.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.entries.Purge()
}
