// Package storage provides SQLite-based persistence for the symbol index,
// call graph, and search structures.
//
// The storage layer manages:
//   - Project metadata
//   - File information and content hashes
//   - Extracted symbols, keyed (file_id, name, start_line)
//   - Resolved call edges and unresolved call sites
//   - Semantic code chunks with FTS5 keyword indexes
//   - Vector embeddings
//   - Package-level module records for scope ranking
//
// # Database Schema
//
// Tables:
//   - projects: Project metadata (root path, module name)
//   - files: File paths, SHA-256 hashes, and mod times
//   - symbols: Extracted symbols with qualified names and complexity
//   - symbols_fts: FTS5 index over symbol names and doc comments
//   - call_edges: Resolved caller-to-callee edges with usage counts
//   - unresolved_calls: Call sites pending project-wide resolution
//   - chunks: Semantic code chunks
//   - chunks_fts: FTS5 index over chunk content
//   - embeddings: Vector embeddings for chunks
//   - imports: Per-file import records
//   - modules: Per-package summaries used for scope boosting
//
// Both FTS tables use the unicode61 tokenizer with '_' as a token
// character, so snake_case identifiers index as single tokens and no
// stemming is applied.
//
// # Call Graph
//
// call_edges and unresolved_calls intentionally have no foreign keys on
// symbol ids. Re-indexing a file replaces its symbols, which can leave
// edges pointing at deleted rows; read queries join through symbols to
// exclude those orphans, and PruneOrphanCallEdges reclaims them lazily.
//
// # Transactions
//
// Use transactions for atomic per-file replacement:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	tx.UpsertFile(ctx, file)
//	tx.DeleteCallsByFile(ctx, file.ID)
//	for _, sym := range symbols {
//	    tx.UpsertSymbol(ctx, sym)
//	}
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Includes sqlite-vec extension for fast vector operations
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - Pure Go vector operations (slower)
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
