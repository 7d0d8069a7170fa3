package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/symdex/symdex-mcp/internal/chunker"
	"github.com/symdex/symdex-mcp/internal/graph"
	"github.com/symdex/symdex-mcp/internal/parser"
	"github.com/symdex/symdex-mcp/internal/storage"
	"github.com/symdex/symdex-mcp/pkg/types"
)

// Indexer coordinates the indexing pipeline: parse -> chunk -> store,
// followed by project-wide call resolution and the module map refresh.
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	storage  storage.Storage
	resolver *graph.Resolver

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers       int  // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize     int  // Number of files to commit per transaction (default: 20)
	IncludeTests  bool // Whether to index test files (default: true)
	IncludeVendor bool // Whether to index vendor directory (default: false)
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed     int
	FilesSkipped     int
	FilesFailed      int
	SymbolsExtracted int
	ChunksCreated    int
	CallsResolved    int
	CallsUnresolved  int
	ModulesMapped    int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store storage.Storage) *Indexer {
	return &Indexer{
		parser:   parser.New(),
		chunker:  chunker.New(),
		storage:  store,
		resolver: graph.NewResolver(store),
		workers:  runtime.NumCPU(),
	}
}

// IndexProject indexes an entire Go project. Per-file work runs
// concurrently; call resolution runs once afterward, when the full
// symbol table is available to match against.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{
			Workers:       runtime.NumCPU(),
			BatchSize:     20,
			IncludeTests:  true,
			IncludeVendor: false,
		}
	}

	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	idx.workers = config.Workers

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	// Get or create project
	project, err := idx.getOrCreateProject(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	// Discover Go files
	files, err := idx.discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	modules := newModuleCollector()

	// Index files concurrently
	err = idx.indexFiles(ctx, project, files, config, stats, modules)
	if err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	// Refresh the module map used for search scoping
	mapped, err := modules.store(ctx, idx.storage, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store module map: %w", err)
	}
	stats.ModulesMapped = mapped

	// Link pending call sites now that every symbol is stored
	resolved, unresolved, err := idx.resolver.ResolvePending(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve calls: %w", err)
	}
	stats.CallsResolved = resolved
	stats.CallsUnresolved = unresolved

	// Drop edges orphaned by deleted or re-parsed files
	if _, err := idx.storage.PruneOrphanCallEdges(ctx); err != nil {
		return nil, fmt.Errorf("failed to prune call graph: %w", err)
	}

	// Update project statistics
	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	// Try to get existing project
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}

	if err != storage.ErrNotFound {
		return nil, err
	}

	// Create new project
	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}

	// Try to extract module info from go.mod
	goModPath := filepath.Join(rootPath, "go.mod")
	if modInfo, err := parseGoMod(goModPath); err == nil {
		project.ModuleName = modInfo.Module
		project.GoVersion = modInfo.GoVersion
	}

	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// discoverFiles finds all Go files in the project, honoring the
// project's root .gitignore when one exists
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	var gitIgnore *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(rootPath, ".gitignore")); err == nil {
		gitIgnore = compiled
	}

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}

		// Skip directories
		if info.IsDir() {
			// Skip vendor unless explicitly included
			if !config.IncludeVendor && info.Name() == "vendor" {
				return filepath.SkipDir
			}
			// Skip hidden directories
			if strings.HasPrefix(info.Name(), ".") && relPath != "." {
				return filepath.SkipDir
			}
			if gitIgnore != nil && relPath != "." && gitIgnore.MatchesPath(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		// Check if it's a Go file
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		// Skip test files unless explicitly included
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// indexFiles indexes a batch of files concurrently
func (idx *Indexer) indexFiles(ctx context.Context, project *storage.Project, files []string,
	config *Config, stats *Statistics, modules *moduleCollector) error {

	// Create worker pool with semaphore
	semaphore := make(chan struct{}, idx.workers)

	// Track progress with atomic counters
	var (
		indexed int32
		skipped int32
		failed  int32
		symbols int32
		chunks  int32
	)

	// Process files in batches for transaction efficiency
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	// Use errgroup for concurrent processing with error propagation
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for i := 0; i < len(files); i += batchSize {
		end := i + batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[i:end]

		g.Go(func() error {
			return idx.indexBatch(gctx, project, batch, semaphore, &indexed, &skipped, &failed, &symbols, &chunks, &mu, stats, modules)
		})
	}

	// Wait for all goroutines to complete
	if err := g.Wait(); err != nil {
		return err
	}

	// Update statistics
	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.SymbolsExtracted = int(symbols)
	stats.ChunksCreated = int(chunks)

	return nil
}

// indexBatch indexes a batch of files within a transaction
func (idx *Indexer) indexBatch(ctx context.Context, project *storage.Project, files []string,
	semaphore chan struct{}, indexed, skipped, failed, symbols, chunks *int32,
	mu *sync.Mutex, stats *Statistics, modules *moduleCollector) error {

	// Start a transaction for this batch
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Process each file in the batch
	for _, filePath := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case semaphore <- struct{}{}:
			// Acquire semaphore
		}

		err := idx.indexFile(ctx, tx, project, filePath, indexed, skipped, failed, symbols, chunks, modules)
		<-semaphore // Release semaphore

		if err != nil {
			atomic.AddInt32(failed, 1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
			mu.Unlock()
			// Continue with other files
			continue
		}
	}

	// Commit the batch
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// indexFile indexes a single file
func (idx *Indexer) indexFile(ctx context.Context, store storage.Storage, project *storage.Project,
	filePath string, indexed, skipped, failed, symbols, chunks *int32, modules *moduleCollector) error {

	// Compute relative path
	relPath, err := filepath.Rel(project.RootPath, filePath)
	if err != nil {
		return err
	}

	// Compute file hash
	hash, modTime, sizeBytes, err := computeFileHash(filePath)
	if err != nil {
		return err
	}

	// Check if file has changed and handle incremental update
	shouldSkip, err := idx.checkFileChanged(ctx, store, project.ID, relPath, hash, skipped, modules)
	if err != nil {
		return err
	}
	if shouldSkip {
		return nil
	}

	// Parse the file
	parseResult, err := idx.parser.ParseFile(filePath)
	if err != nil {
		return err
	}

	// Create or update file record
	file := &storage.File{
		ProjectID:   project.ID,
		FilePath:    relPath,
		PackageName: parseResult.PackageName,
		ContentHash: hash,
		ModTime:     modTime,
		SizeBytes:   sizeBytes,
	}

	// Check for parse errors
	if len(parseResult.Errors) > 0 {
		errMsg := parseResult.Errors[0].Message
		file.ParseError = &errMsg
	}

	if err := store.UpsertFile(ctx, file); err != nil {
		return err
	}

	// Store imports
	for _, imp := range parseResult.Imports {
		impRecord := &storage.Import{
			FileID:     file.ID,
			ImportPath: imp.Path,
			Alias:      imp.Alias,
		}
		if err := store.UpsertImport(ctx, impRecord); err != nil {
			return fmt.Errorf("failed to store import: %w", err)
		}
	}

	// Store symbols, keeping this file's name map for same-file call linking
	symbolsByName := make(map[string][]*storage.Symbol)
	symbolsByQualified := make(map[string]*storage.Symbol)
	symbolCount := 0
	for i := range parseResult.Symbols {
		sym := storage.FromTypesSymbol(parseResult.Symbols[i], file.ID)
		if err := store.UpsertSymbol(ctx, sym); err != nil {
			return fmt.Errorf("failed to store symbol: %w", err)
		}
		symbolsByName[sym.Name] = append(symbolsByName[sym.Name], sym)
		if sym.QualifiedName != "" {
			symbolsByQualified[sym.QualifiedName] = sym
		}
		symbolCount++
	}

	if err := idx.storeCalls(ctx, store, parseResult.Calls, symbolsByName, symbolsByQualified); err != nil {
		return err
	}

	modules.add(relPath, parseResult)

	// Create chunks
	fileChunks, err := idx.chunker.ChunkFile(filePath, parseResult, file.ID)
	if err != nil {
		return fmt.Errorf("failed to chunk file: %w", err)
	}

	// Store chunks
	chunkCount := 0
	for _, chunk := range fileChunks {
		storageChunk := &storage.Chunk{
			FileID:        file.ID,
			SymbolID:      chunk.SymbolID,
			Content:       chunk.Content,
			ContentHash:   chunk.ContentHash,
			TokenCount:    chunk.TokenCount,
			StartLine:     chunk.StartLine,
			EndLine:       chunk.EndLine,
			ContextBefore: chunk.ContextBefore,
			ContextAfter:  chunk.ContextAfter,
			ChunkType:     string(chunk.ChunkType),
		}
		if err := store.UpsertChunk(ctx, storageChunk); err != nil {
			return fmt.Errorf("failed to store chunk: %w", err)
		}
		chunkCount++
	}

	// Update counters
	atomic.AddInt32(indexed, 1)
	atomic.AddInt32(symbols, int32(symbolCount))
	atomic.AddInt32(chunks, int32(chunkCount))

	return nil
}

// storeCalls records every call site found in a file. Callees declared in
// the same file link immediately; everything else is stored as pending and
// picked up by the project-wide resolution pass.
func (idx *Indexer) storeCalls(ctx context.Context, store storage.Storage, calls []types.CallReference,
	byName map[string][]*storage.Symbol, byQualified map[string]*storage.Symbol) error {

	for _, call := range calls {
		caller, ok := byQualified[call.CallerName]
		if !ok {
			if candidates := byName[call.CallerName]; len(candidates) > 0 {
				caller = candidates[0]
			}
		}
		if caller == nil {
			continue // Caller vanished from the parse, nothing to attach
		}

		sameFile := byName[call.CalleeName]
		if len(sameFile) > 0 {
			for _, callee := range sameFile {
				if callee.Kind != "function" && callee.Kind != "method" {
					continue
				}
				edge := &storage.CallEdge{
					CallerID:   caller.ID,
					CalleeID:   callee.ID,
					CalleeName: call.CalleeName,
					CallType:   string(call.CallType),
					CallLine:   call.Line,
				}
				if err := store.UpsertCallEdge(ctx, edge); err != nil {
					return fmt.Errorf("failed to store call edge: %w", err)
				}
			}
			continue
		}

		calleeName := call.CalleeName
		if call.CalleeTarget != "" {
			calleeName = call.CalleeTarget + "." + call.CalleeName
		}
		pending := &storage.UnresolvedCall{
			CallerID:   caller.ID,
			CalleeName: calleeName,
			CallType:   string(call.CallType),
			CallLine:   call.Line,
		}
		if err := store.InsertUnresolvedCall(ctx, pending); err != nil {
			return fmt.Errorf("failed to store pending call: %w", err)
		}
	}
	return nil
}

// checkFileChanged checks if a file has changed and needs re-indexing
func (idx *Indexer) checkFileChanged(ctx context.Context, store storage.Storage, projectID int64,
	relPath string, hash [32]byte, skipped *int32, modules *moduleCollector) (bool, error) {

	existingFile, err := store.GetFile(ctx, projectID, relPath)
	if err == storage.ErrNotFound {
		// New file, needs indexing
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// File exists - check if it has changed
	if existingFile.ContentHash == hash {
		// File unchanged, skip
		atomic.AddInt32(skipped, 1)
		modules.markKept(relPath)
		return true, nil
	}

	// File changed - drop derived data before re-indexing. Call edges go
	// first so no edge survives pointing at a symbol about to be replaced.
	if err := store.DeleteCallsByFile(ctx, existingFile.ID); err != nil {
		return false, fmt.Errorf("failed to delete old calls: %w", err)
	}
	if err := store.DeleteSymbolsByFile(ctx, existingFile.ID); err != nil {
		return false, fmt.Errorf("failed to delete old symbols: %w", err)
	}
	if err := store.DeleteChunksByFile(ctx, existingFile.ID); err != nil {
		return false, fmt.Errorf("failed to delete old chunks: %w", err)
	}

	return false, nil
}

// updateProjectStats updates the project's file and chunk counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	// Get file count
	files, err := idx.storage.ListFiles(ctx, project.ID)
	if err != nil {
		return err
	}

	// Count chunks across all files
	totalChunks := 0
	for _, file := range files {
		chunks, err := idx.storage.ListChunksByFile(ctx, file.ID)
		if err != nil {
			return err
		}
		totalChunks += len(chunks)
	}

	project.TotalFiles = len(files)
	project.TotalChunks = totalChunks
	project.LastIndexedAt = time.Now()

	return idx.storage.UpdateProject(ctx, project)
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	// Get file info
	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	// Compute hash
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}

// goModInfo contains parsed go.mod information
type goModInfo struct {
	Module    string
	GoVersion string
}

// parseGoMod extracts basic info from go.mod file
func parseGoMod(goModPath string) (*goModInfo, error) {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, err
	}

	info := &goModInfo{}
	lines := strings.Split(string(content), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			info.Module = strings.TrimSpace(strings.TrimPrefix(line, "module"))
		} else if strings.HasPrefix(line, "go ") {
			info.GoVersion = strings.TrimSpace(strings.TrimPrefix(line, "go"))
		}
	}

	return info, nil
}

// moduleExportCap bounds how many exported names one module record keeps
const moduleExportCap = 30

type moduleEntry struct {
	name        string
	purpose     string
	exports     []string
	symbolCount int
}

// moduleCollector aggregates per-package facts across concurrent file
// indexing, then writes the module map in one pass
type moduleCollector struct {
	mu      sync.Mutex
	entries map[string]*moduleEntry
}

func newModuleCollector() *moduleCollector {
	return &moduleCollector{entries: make(map[string]*moduleEntry)}
}

func (mc *moduleCollector) add(relPath string, result *types.ParseResult) {
	dir := filepath.Dir(relPath)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[dir]
	if !ok {
		entry = &moduleEntry{name: result.PackageName}
		mc.entries[dir] = entry
	}

	for i := range result.Symbols {
		sym := &result.Symbols[i]
		entry.symbolCount++
		if sym.Scope != types.ScopeExported {
			continue
		}
		if len(entry.exports) < moduleExportCap {
			entry.exports = append(entry.exports, sym.Name)
		}
		// The first documented exported symbol stands in for the package
		// purpose until something better is available
		if entry.purpose == "" && sym.DocComment != "" {
			entry.purpose = firstSentence(sym.DocComment)
		}
	}
}

// markKept records that a skipped (unchanged) file's package still exists,
// so the module map keeps an entry for it
func (mc *moduleCollector) markKept(relPath string) {
	dir := filepath.Dir(relPath)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, ok := mc.entries[dir]; !ok {
		mc.entries[dir] = &moduleEntry{}
	}
}

func (mc *moduleCollector) store(ctx context.Context, store storage.Storage, projectID int64) (int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	paths := make([]string, 0, len(mc.entries))
	for path := range mc.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	stored := 0
	for _, path := range paths {
		entry := mc.entries[path]
		// Packages seen only through unchanged files keep their existing
		// record; overwriting with an empty one would erase the map entry
		if entry.name == "" && entry.symbolCount == 0 {
			continue
		}
		module := &storage.Module{
			ProjectID:   projectID,
			Path:        path,
			Name:        entry.name,
			Purpose:     entry.purpose,
			Exports:     strings.Join(entry.exports, " "),
			SymbolCount: entry.symbolCount,
		}
		if err := store.UpsertModule(ctx, module); err != nil {
			return stored, fmt.Errorf("failed to store module %s: %w", path, err)
		}
		stored++
	}
	return stored, nil
}

// firstSentence trims a doc comment down to its leading sentence
func firstSentence(doc string) string {
	doc = strings.TrimSpace(doc)
	if idx := strings.IndexAny(doc, ".\n"); idx >= 0 {
		return strings.TrimSpace(doc[:idx+1])
	}
	return doc
}
