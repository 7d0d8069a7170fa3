// Package chunker slices parsed Go source into retrieval units.
//
// A chunk is the granule the keyword and vector indexes operate on. One
// chunk per symbol is the default strategy: the full declaration span,
// plus a ContextBefore carrying the package clause and imports and a
// ContextAfter naming adjacent declarations. Symbol-free files collapse
// to a single package-level chunk.
//
//	c := chunker.New()
//	chunks, err := c.ChunkFile(path, parseResult, fileID)
//
// Sizing is heuristic. Token counts are estimated at TokensPerChar
// characters per token; a chunk over MaxTokensPerChunk is split into
// consecutive line windows that each fit the cap, every window keeping
// the original chunk's surrounding context.
//
// Every chunk carries a SHA-256 content hash so the indexer can skip
// re-embedding spans whose text did not change between runs even when
// surrounding lines moved.
package chunker
