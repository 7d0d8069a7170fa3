package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/symdex/symdex-mcp/internal/embedder"
	"github.com/symdex/symdex-mcp/internal/graph"
	"github.com/symdex/symdex-mcp/internal/indexer"
	"github.com/symdex/symdex-mcp/internal/scope"
	"github.com/symdex/symdex-mcp/internal/searcher"
	"github.com/symdex/symdex-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "symdex-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.symdex/indices"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	indexer   *indexer.Indexer
	searcher  *searcher.Searcher
	graph     *graph.Resolver
	indexLock indexer.IndexLock
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string) (*Server, error) {
	// Expand home directory if needed
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".symdex", "indices")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// A single database file holds every indexed project
	dbFile := filepath.Join(dbPath, "symdex.db")

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create embedder; search degrades to keyword and symbol lookups when
	// no provider can be built
	emb, err := embedder.NewFromEnv()
	if err != nil {
		emb = nil
	}

	s := newServer(store, emb)
	return s, nil
}

// newServer wires the server from already-built dependencies
func newServer(store storage.Storage, emb embedder.Embedder) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		indexer:  indexer.New(store),
		searcher: searcher.NewSearcher(store, emb, scope.NewProvider(store)),
		graph:    graph.NewResolver(store),
	}

	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getSymbolsTool(), s.handleGetSymbols)
	s.mcp.AddTool(getCallersTool(), s.handleGetCallers)
	s.mcp.AddTool(getCalleesTool(), s.handleGetCallees)
	s.mcp.AddTool(getCallGraphTool(), s.handleGetCallGraph)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
