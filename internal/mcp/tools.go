package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/symdex/symdex-mcp/internal/indexer"
	"github.com/symdex/symdex-mcp/internal/searcher"
	"github.com/symdex/symdex-mcp/internal/storage"
	"github.com/symdex/symdex-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not contain a Go project
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeSymbolNotFound     = -32005 // Symbol not present in the index
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoGoFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing operation is already running", nil)
	}
	defer s.indexLock.Release()

	config := &indexer.Config{
		IncludeTests:  getBoolDefault(args, "include_tests", true),
		IncludeVendor: getBoolDefault(args, "include_vendor", false),
	}

	stats, err := s.indexer.IndexProject(ctx, path, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached search responses are stale the moment the index changes
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":           true,
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"symbols_extracted": stats.SymbolsExtracted,
		"chunks_created":    stats.ChunksCreated,
		"calls_resolved":    stats.CallsResolved,
		"calls_unresolved":  stats.CallsUnresolved,
		"modules_mapped":    stats.ModulesMapped,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation. Call graph
// questions bypass the hybrid pipeline and go straight to the graph.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	project, mcpErr := s.lookupProject(ctx, path)
	if mcpErr != nil {
		return nil, mcpErr
	}

	if xref, ok := searcher.ParseCrossRef(query); ok {
		return s.answerCrossRef(ctx, project.ID, xref, limit)
	}

	filters := parseSearchFilters(args)
	response, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Filters:   filters,
		ProjectID: project.ID,
		UseCache:  true,
	})
	if err != nil {
		if errors.Is(err, searcher.ErrEmptyQuery) {
			return nil, newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(response.Results))
	for i, result := range response.Results {
		results[i] = formatSearchResult(result)
	}

	payload := map[string]interface{}{
		"query":         query,
		"total_results": response.TotalResults,
		"duration_ms":   response.Duration.Milliseconds(),
		"cache_hit":     response.CacheHit,
		"results":       results,
	}
	if response.Degraded {
		payload["degraded"] = true
		payload["degraded_sources"] = response.DegradedSources
	}

	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// formatSearchResult shapes one ranked result for the wire
func formatSearchResult(result types.SearchResult) map[string]interface{} {
	entry := map[string]interface{}{
		"rank":   result.Rank,
		"score":  result.RelevanceScore,
		"source": string(result.Source),
		"file": map[string]interface{}{
			"path":       result.File.Path,
			"package":    result.File.Package,
			"start_line": result.File.StartLine,
			"end_line":   result.File.EndLine,
		},
		"content": result.Content,
	}
	if result.Symbol != nil {
		entry["symbol"] = map[string]interface{}{
			"name":      result.Symbol.Name,
			"kind":      string(result.Symbol.Kind),
			"signature": result.Symbol.Signature,
		}
	}
	if result.Context != "" {
		entry["context"] = result.Context
	}
	return entry
}

// parseSearchFilters converts the tool's filters argument into storage filters
func parseSearchFilters(args map[string]interface{}) *storage.SearchFilters {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok {
		return nil
	}

	filters := &storage.SearchFilters{}
	if symbolTypes, ok := raw["symbol_types"].([]interface{}); ok {
		for _, st := range symbolTypes {
			if v, ok := st.(string); ok {
				filters.SymbolTypes = append(filters.SymbolTypes, v)
			}
		}
	}
	if pattern, ok := raw["file_pattern"].(string); ok {
		filters.FilePattern = pattern
	}
	if packages, ok := raw["packages"].([]interface{}); ok {
		for _, p := range packages {
			if v, ok := p.(string); ok {
				filters.Packages = append(filters.Packages, v)
			}
		}
	}
	if minRelevance, ok := raw["min_relevance"].(float64); ok {
		filters.MinRelevance = minRelevance
	}
	return filters
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	project, err := s.storage.GetProject(ctx, path)
	if err == storage.ErrNotFound {
		// Project not indexed
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Project not indexed. Use index_codebase tool to index this project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"module_name":     project.ModuleName,
			"go_version":      project.GoVersion,
			"last_indexed_at": project.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"files_count":      status.FilesCount,
			"symbols_count":    status.SymbolsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"call_edges_count": status.CallEdgesCount,
			"unresolved_calls": status.UnresolvedCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}

	// Call graph summary is best-effort; the core status stands on its own
	if graphStats, err := s.graph.Stats(ctx, project.ID); err == nil {
		summary := map[string]interface{}{
			"callers": graphStats.CallerCount,
			"callees": graphStats.CalleeCount,
		}
		if entries, err := s.graph.EntryPoints(ctx, project.ID, 10); err == nil {
			summary["entry_points"] = formatSymbolNames(entries)
		}
		if leaves, err := s.graph.LeafFunctions(ctx, project.ID, 10); err == nil {
			summary["leaf_functions"] = formatSymbolNames(leaves)
		}
		response["call_graph"] = summary
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func formatSymbolNames(symbols []*storage.Symbol) []string {
	names := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		names = append(names, sym.Name)
	}
	return names
}

// lookupProject resolves a project path to its indexed record
func (s *Server) lookupProject(ctx context.Context, path string) (*storage.Project, error) {
	project, err := s.storage.GetProject(ctx, path)
	if err == storage.ErrNotFound {
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
			"path": path,
			"hint": "Use index_codebase to index this project first.",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to look up project", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return project, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	// Check for Go files
	hasGoFiles := false
	_ = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(p, ".go") {
			hasGoFiles = true
			// Continue walking - we just need to know if at least one Go file exists
		}
		return nil
	})

	if !hasGoFiles {
		return ErrNoGoFiles
	}

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoGoFiles       = errors.New("directory does not contain Go files")
)
