package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/symdex/symdex-mcp/internal/embedder"
	"github.com/symdex/symdex-mcp/internal/scope"
	"github.com/symdex/symdex-mcp/internal/storage"
	"github.com/symdex/symdex-mcp/pkg/types"
)

var (
	// ErrEmptyQuery is returned for blank or whitespace-only queries
	ErrEmptyQuery = errors.New("query cannot be empty")

	// errSemanticUnavailable marks the semantic source as absent rather
	// than failed
	errSemanticUnavailable = errors.New("semantic search unavailable")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query     string
	Limit     int
	Filters   *storage.SearchFilters
	ProjectID int64
	UseCache  bool
	CacheTTL  time.Duration
}

// SearchResponse contains search results and metadata. Degraded reports
// reduced capability, never an error: when a source is down the response
// carries what the remaining sources found and names what was skipped.
type SearchResponse struct {
	Results         []types.SearchResult
	TotalResults    int
	Duration        time.Duration
	CacheHit        bool
	Degraded        bool
	DegradedSources []string
	SemanticResults int
	KeywordResults  int
	SymbolResults   int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher fans a query out to the semantic, keyword, and symbol-name
// sources in parallel and merges the results into one ranked list.
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	scope    scope.Provider
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance. embedder may be nil, in
// which case every response is degraded to keyword and symbol lookups.
func NewSearcher(store storage.Storage, emb embedder.Embedder, scopeProvider scope.Provider) *Searcher {
	// Create LRU cache with 1000 entry limit
	// Cache will automatically evict least recently used entries
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage:  store,
		embedder: emb,
		scope:    scopeProvider,
		cache:    cache,
	}
}

// candidate is a materialized result plus the ranking signals that are
// not part of the client-facing shape
type candidate struct {
	result    types.SearchResult
	modTime   time.Time
	proximate bool
}

// sourceResult holds the output of one search source
type sourceResult struct {
	source     types.MatchSource
	candidates []candidate
	proximity  map[int64]bool
	err        error
}

// Search runs the full pipeline: parallel source lookups, score merge
// with per-location dedup, boost passes, and final ranking.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached, err := s.checkCache(req); err == nil && cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	terms := Tokenize(req.Query)

	resultChan := make(chan sourceResult, 3)
	go s.runSemanticSource(ctx, req, resultChan)
	go s.runKeywordSource(ctx, req, terms, resultChan)
	go s.runSymbolSource(ctx, req, terms, resultChan)

	bySource := make(map[types.MatchSource]sourceResult, 3)
	for len(bySource) < 3 {
		select {
		case res := <-resultChan:
			bySource[res.source] = res
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	response := &SearchResponse{}
	var merged []candidate
	failures := 0
	for _, source := range []types.MatchSource{types.SourceSemantic, types.SourceKeyword, types.SourceSymbolName} {
		res := bySource[source]
		if res.err != nil {
			failures++
			response.Degraded = true
			response.DegradedSources = append(response.DegradedSources, string(source))
			continue
		}
		merged = append(merged, res.candidates...)
	}
	if failures == 3 {
		return nil, fmt.Errorf("all search sources failed: %w", bySource[types.SourceKeyword].err)
	}

	response.SemanticResults = len(bySource[types.SourceSemantic].candidates)
	response.KeywordResults = len(bySource[types.SourceKeyword].candidates)
	response.SymbolResults = len(bySource[types.SourceSymbolName].candidates)

	deduped := dedupeByLocation(merged)
	s.applyBoosts(ctx, req, terms, deduped, bySource[types.SourceKeyword].proximity)

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].result.RelevanceScore != deduped[j].result.RelevanceScore {
			return deduped[i].result.RelevanceScore > deduped[j].result.RelevanceScore
		}
		return deduped[i].result.File.Path < deduped[j].result.File.Path
	})

	if len(deduped) > req.Limit {
		deduped = deduped[:req.Limit]
	}

	response.Results = make([]types.SearchResult, len(deduped))
	for i, c := range deduped {
		c.result.Rank = i + 1
		response.Results[i] = c.result
	}
	response.TotalResults = len(response.Results)
	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// runSemanticSource embeds the query and searches by vector similarity
func (s *Searcher) runSemanticSource(ctx context.Context, req SearchRequest, out chan<- sourceResult) {
	res := sourceResult{source: types.SourceSemantic}

	if s.embedder == nil {
		res.err = errSemanticUnavailable
		s.deliver(ctx, out, res)
		return
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		res.err = fmt.Errorf("failed to generate query embedding: %w", err)
		s.deliver(ctx, out, res)
		return
	}

	hits, err := s.storage.SearchVector(ctx, req.ProjectID, embedding.Vector, req.Limit*2, req.Filters)
	if err != nil {
		res.err = err
		s.deliver(ctx, out, res)
		return
	}

	for _, hit := range hits {
		c, err := s.materializeChunk(ctx, hit.ChunkID, hit.SimilarityScore, types.SourceSemantic)
		if err != nil {
			continue // Skip chunks that can't be loaded
		}
		res.candidates = append(res.candidates, c)
	}
	s.deliver(ctx, out, res)
}

// runKeywordSource searches the FTS index, requiring all terms first and
// widening to any-term only when the strict match comes back empty. A
// NEAR probe marks which hits keep the terms close together; that set
// feeds the proximity boost and never gates the result list.
func (s *Searcher) runKeywordSource(ctx context.Context, req SearchRequest, terms []string, out chan<- sourceResult) {
	res := sourceResult{source: types.SourceKeyword}

	if len(terms) == 0 {
		s.deliver(ctx, out, res)
		return
	}

	hits, err := s.storage.SearchText(ctx, req.ProjectID, buildMatchAll(terms), req.Limit*2, req.Filters)
	if err != nil {
		res.err = err
		s.deliver(ctx, out, res)
		return
	}
	if len(hits) == 0 && len(terms) > 1 {
		hits, err = s.storage.SearchText(ctx, req.ProjectID, buildMatchAny(terms), req.Limit*2, req.Filters)
		if err != nil {
			res.err = err
			s.deliver(ctx, out, res)
			return
		}
	}

	if len(terms) > 1 && len(hits) > 0 {
		near, err := s.storage.SearchText(ctx, req.ProjectID, buildMatchNear(terms), req.Limit*2, req.Filters)
		if err == nil {
			res.proximity = make(map[int64]bool, len(near))
			for _, hit := range near {
				res.proximity[hit.ChunkID] = true
			}
		}
	}

	for _, hit := range hits {
		c, err := s.materializeChunk(ctx, hit.ChunkID, hit.BM25Score, types.SourceKeyword)
		if err != nil {
			continue
		}
		res.candidates = append(res.candidates, c)
	}
	s.deliver(ctx, out, res)
}

// runSymbolSource looks up symbols by name containment and scores each by
// how closely its name answers the query
func (s *Searcher) runSymbolSource(ctx context.Context, req SearchRequest, terms []string, out chan<- sourceResult) {
	res := sourceResult{source: types.SourceSymbolName}

	patterns := []string{strings.TrimSpace(req.Query)}
	if len(terms) > 1 {
		patterns = append(patterns, terms...)
	}

	seen := make(map[int64]bool)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		symbols, err := s.storage.SearchSymbolsLike(ctx, req.ProjectID, pattern, req.Limit*2)
		if err != nil {
			res.err = err
			s.deliver(ctx, out, res)
			return
		}
		for _, sym := range symbols {
			if seen[sym.ID] {
				continue
			}
			seen[sym.ID] = true

			score := scoreSymbolName(sym.Name, req.Query, terms)
			if score == 0 {
				continue
			}
			c, err := s.materializeSymbol(ctx, sym, score)
			if err != nil {
				continue
			}
			res.candidates = append(res.candidates, c)
		}
	}
	s.deliver(ctx, out, res)
}

func (s *Searcher) deliver(ctx context.Context, out chan<- sourceResult, res sourceResult) {
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// materializeChunk loads a chunk hit into a full search result
func (s *Searcher) materializeChunk(ctx context.Context, chunkID int64, score float64, source types.MatchSource) (candidate, error) {
	chunk, err := s.storage.GetChunk(ctx, chunkID)
	if err != nil {
		return candidate{}, err
	}
	file, err := s.storage.GetFileByID(ctx, chunk.FileID)
	if err != nil {
		return candidate{}, err
	}

	var symbol *types.Symbol
	if chunk.SymbolID != nil {
		if storageSymbol, err := s.storage.GetSymbol(ctx, *chunk.SymbolID); err == nil {
			typesSymbol := storageSymbol.ToTypesSymbol()
			symbol = &typesSymbol
		}
	}

	return candidate{
		result: types.SearchResult{
			ChunkID:        chunkID,
			RelevanceScore: score,
			Source:         source,
			Symbol:         symbol,
			File: &types.FileInfo{
				Path:      file.FilePath,
				Package:   file.PackageName,
				StartLine: chunk.StartLine,
				EndLine:   chunk.EndLine,
			},
			Content: chunk.Content,
			Context: strings.TrimSpace(chunk.ContextBefore + "\n\n" + chunk.ContextAfter),
		},
		modTime: file.ModTime,
	}, nil
}

// materializeSymbol turns a symbol row into a search result anchored at
// the symbol's declaration
func (s *Searcher) materializeSymbol(ctx context.Context, sym *storage.Symbol, score float64) (candidate, error) {
	file, err := s.storage.GetFileByID(ctx, sym.FileID)
	if err != nil {
		return candidate{}, err
	}

	typesSymbol := sym.ToTypesSymbol()
	return candidate{
		result: types.SearchResult{
			RelevanceScore: score,
			Source:         types.SourceSymbolName,
			Symbol:         &typesSymbol,
			File: &types.FileInfo{
				Path:      file.FilePath,
				Package:   file.PackageName,
				StartLine: sym.StartLine,
				EndLine:   sym.EndLine,
			},
			Content: sym.Signature,
			Context: sym.DocComment,
		},
		modTime: file.ModTime,
	}, nil
}

// dedupeByLocation collapses results pointing at the same code location,
// keeping the single highest score. Scores are never summed: a location
// found by three sources is not three times as relevant.
func dedupeByLocation(candidates []candidate) []candidate {
	type locKey struct {
		path      string
		startLine int
	}
	best := make(map[locKey]int)
	out := make([]candidate, 0, len(candidates))

	for _, c := range candidates {
		key := locKey{path: c.result.File.Path, startLine: c.result.File.StartLine}
		if idx, ok := best[key]; ok {
			if c.result.RelevanceScore > out[idx].result.RelevanceScore {
				out[idx] = c
			} else if c.proximate {
				out[idx].proximate = true
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}

// applyBoosts runs the multiplier passes in fixed order: scope, proximity,
// intent rerank, documentation, recency, then clamp.
func (s *Searcher) applyBoosts(ctx context.Context, req SearchRequest, terms []string, candidates []candidate, proximity map[int64]bool) {
	var topModules []string
	if s.scope != nil {
		if paths, err := s.scope.TopModules(ctx, req.ProjectID, terms, 3); err == nil {
			topModules = paths
		}
	}

	intent := DetectIntent(req.Query)
	now := time.Now()

	for i := range candidates {
		c := &candidates[i]
		score := c.result.RelevanceScore

		for _, module := range topModules {
			if strings.HasPrefix(c.result.File.Path, module) {
				score *= boostScope
				break
			}
		}

		if c.result.ChunkID != 0 && proximity[c.result.ChunkID] {
			c.proximate = true
		}
		if c.proximate {
			score *= boostProximity
		}

		if intent != IntentNone && matchesIntent(intent, &c.result) {
			score *= intent.multiplier()
		}

		if c.result.Symbol != nil && c.result.Symbol.DocComment != "" {
			score *= boostDocumented
		}

		if !c.modTime.IsZero() {
			score *= recencyBoost(now.Sub(c.modTime).Hours() / 24)
		}

		c.result.RelevanceScore = clampScore(score)
	}
}

// matchesIntent decides whether a result is the kind of answer the
// detected intent asked for
func matchesIntent(intent Intent, result *types.SearchResult) bool {
	switch intent {
	case IntentDocumentation:
		return result.Symbol != nil && result.Symbol.DocComment != ""
	case IntentImplementation:
		return result.Symbol != nil && result.Symbol.IsCallable()
	case IntentExample:
		if result.Symbol != nil && result.Symbol.IsTest {
			return true
		}
		return strings.Contains(result.File.Path, "_test.go")
	}
	return false
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = 10 // Default limit
	}
	if req.Limit > 100 {
		req.Limit = 100 // Max limit
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = 1 * time.Hour
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, error) {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)

	if !found {
		s.cacheMu.RUnlock()
		return nil, fmt.Errorf("cache miss")
	}

	// Check expiry while holding the read lock to avoid a race with eviction
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, fmt.Errorf("cache expired")
	}

	// Return a deep copy so callers can't mutate the cached entry
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response, nil
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)

	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults:    src.TotalResults,
		Duration:        src.Duration,
		CacheHit:        src.CacheHit,
		Degraded:        src.Degraded,
		DegradedSources: append([]string(nil), src.DegradedSources...),
		SemanticResults: src.SemanticResults,
		KeywordResults:  src.KeywordResults,
		SymbolResults:   src.SymbolResults,
		Results:         make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		dst.Results[i] = result

		// Symbol and FileInfo hold only value fields, so a shallow copy of
		// the pointed-to struct is a full copy
		if result.Symbol != nil {
			symbolCopy := *result.Symbol
			dst.Results[i].Symbol = &symbolCopy
		}
		if result.File != nil {
			fileCopy := *result.File
			dst.Results[i].File = &fileCopy
		}
	}

	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	// Build deterministic string representation
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.ProjectID))

	// Add filters with stable serialization
	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(strings.Join(req.Filters.SymbolTypes, ","))
		data.WriteString("|")
		data.WriteString(req.Filters.FilePattern)
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.Packages, ","))
		data.WriteString("|")
		data.WriteString(fmt.Sprintf("%.2f", req.Filters.MinRelevance))
	}

	return sha256.Sum256([]byte(data.String()))
}

// InvalidateCache drops all cached queries. Called after indexing so
// results never go stale relative to the index.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}
