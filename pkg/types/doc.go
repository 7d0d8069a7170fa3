// Package types provides shared type definitions for the symdex MCP server.
//
// This package defines domain types used across multiple components of symdex,
// including symbols, call references, chunks, parse results, and search
// results.
//
// # Core Types
//
// Symbol represents a language construct (function, method, type, etc.)
// extracted from source code:
//
//	symbol := &types.Symbol{
//	    Name:      "ParseFile",
//	    Kind:      types.KindFunction,
//	    Package:   "parser",
//	    Signature: "func ParseFile(path string) (*ParseResult, error)",
//	}
//
// CallReference is a raw call site observed during parsing. The indexer
// turns references into stored call graph rows: an edge when the callee
// is already known, a pending unresolved call otherwise:
//
//	ref := types.CallReference{CallerName: "Run", CalleeName: "step", CallType: types.CallDirect, Line: 42}
//
// Chunk represents a semantic code section for embedding and keyword search:
//
//	chunk := &types.Chunk{
//	    Content:       functionBody,
//	    ContextBefore: imports,
//	    ChunkType:     types.ChunkFunction,
//	}
//
// # Search Results
//
// SearchResult combines symbol metadata with relevance scoring:
//
//	result := &types.SearchResult{
//	    Rank:           1,
//	    RelevanceScore: 0.92,
//	    Source:         types.SourceSymbolName,
//	    Symbol:         symbol,
//	}
//
// Relevance scores are normalized to [0, 1], with higher values indicating
// better matches. Results sharing the same (file path, start line) are
// deduplicated keeping the higher score.
package types
