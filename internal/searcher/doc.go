// Package searcher implements hybrid code search over the symbol, keyword,
// and semantic indices.
//
// A query fans out to three sources in parallel:
//   - Symbol names: substring lookup against declared symbols, scored by
//     how closely the name answers the query (exact > substring > all
//     terms present > partial coverage)
//   - Keyword: FTS5 match over chunk content, requiring all terms first
//     and widening to any-term only when the strict match is empty
//   - Semantic: vector similarity over chunk embeddings, when an
//     embedding provider is configured
//
// # Basic Usage
//
//	s := searcher.NewSearcher(storage, embedder, scopeProvider)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    ProjectID: projectID,
//	    Query:     "user authentication logic",
//	    Limit:     10,
//	})
//
//	for _, result := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n",
//	        result.Rank, result.File.Path, result.RelevanceScore)
//	}
//
// # Merging and Deduplication
//
// Each source returns independently scored candidates. Candidates pointing
// at the same (file path, start line) are collapsed keeping the single
// highest score. Scores are never summed across sources: agreement between
// sources does not multiply relevance.
//
// # Boost Stages
//
// After the merge, multipliers apply in fixed order:
//
//	scope       x1.3   result lives in one of the top 3 modules for the query terms
//	proximity   x1.2   keyword hit where the terms appear near each other
//	intent      x1.15-1.25  rerank when the query phrasing asks for docs,
//	                   implementation, or examples
//	documented  x1.1   symbol carries a doc comment
//	recency     up to x1.2  file modified recently
//
// Final scores are clamped to [0, 1].
//
// # Degraded Results
//
// A failing or absent source does not fail the search. The response
// carries what the remaining sources found, with Degraded set and the
// skipped sources named in DegradedSources. An error is returned only
// when every source fails or the query is empty.
//
// # Cross-Reference Queries
//
// ParseCrossRef recognizes call graph questions ("who calls X", "what
// does X call") before the hybrid pipeline runs. Callers should route
// recognized queries to the call graph directly; they are exact lookups,
// not ranked searches.
//
// # Caching
//
// Responses are cached in an LRU keyed by a hash of the query, project,
// and filters. Entries expire after the request's TTL (default 1 hour);
// InvalidateCache drops everything after reindexing.
package searcher
