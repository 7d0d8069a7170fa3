// Package indexer coordinates the end-to-end indexing pipeline for Go codebases.
//
// The indexer orchestrates parsing, call extraction, chunking, and storage,
// managing concurrency and error handling for production-scale code indexing.
//
// # Basic Usage
//
//	idx := indexer.New(storage)
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", nil)
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Indexing Pipeline
//
// The indexer executes a multi-stage pipeline:
//
//  1. Project Discovery: find all .go files, honoring .gitignore and
//     vendor/test exclusions
//  2. Incremental Decision: compare file hashes, skip unchanged files
//  3. Parse & Chunk: extract symbols, call sites, and semantic chunks
//     (parallel)
//  4. Store: persist to SQLite in per-batch transactions
//  5. Resolve: link pending call sites against the full symbol table
//  6. Module Map: refresh the per-package summary used for search scoping
//
// # Incremental Indexing
//
// By default, the indexer only processes changed files:
//
//	// First index: processes all files
//	stats1, _ := idx.IndexProject(ctx, root, nil)
//	// Files: 247 indexed, 0 skipped
//
//	// Subsequent index: only changed files
//	stats2, _ := idx.IndexProject(ctx, root, nil)
//	// Files: 3 indexed, 244 skipped
//
// File change detection uses SHA-256 content hashing. When a file does
// change, its symbols, chunks, and outgoing calls are replaced wholesale.
// Call edges arriving from other files are demoted back to pending and
// relinked during the resolution pass, so the graph survives symbol id
// churn without re-parsing the callers.
//
// # Call Graph Construction
//
// Call sites found during parsing link in two phases. Callees declared in
// the same file get an edge immediately. Everything else is recorded as
// pending and matched once all files are stored; ambiguous names link to
// every candidate. Calls into external dependencies stay pending, which is
// their terminal state.
//
// # Concurrent Processing
//
// Files are processed by a worker pool bounded by a semaphore, with one
// transaction per batch of files. Default: NumCPU() workers, 20 files per
// batch.
//
// # Error Handling
//
//	stats, err := idx.IndexProject(ctx, root, nil)
//	// err only returned for fatal errors (e.g., storage failure)
//
//	if stats.FilesFailed > 0 {
//	    for _, msg := range stats.ErrorMessages {
//	        log.Println(msg)
//	    }
//	}
//
// Syntax errors are non-fatal: the file record carries the error and any
// symbols recovered from the partial AST are indexed normally.
package indexer
