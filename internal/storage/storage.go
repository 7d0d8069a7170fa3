package storage

import (
	"context"
	"time"

	"github.com/symdex/symdex-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed code data
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	GetFileByID(ctx context.Context, fileID int64) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Symbol operations
	UpsertSymbol(ctx context.Context, symbol *Symbol) error
	GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error)
	ListSymbolsByFile(ctx context.Context, fileID int64, kindFilter string) ([]*Symbol, error)
	DeleteSymbolsByFile(ctx context.Context, fileID int64) error
	FindSymbolsByName(ctx context.Context, projectID int64, name string) ([]*Symbol, error)
	SearchSymbolsLike(ctx context.Context, projectID int64, pattern string, limit int) ([]*Symbol, error)
	SearchSymbolsMatch(ctx context.Context, projectID int64, matchExpr string, limit int) ([]*Symbol, error)
	SymbolNameExists(ctx context.Context, projectID int64, name string) (bool, error)

	// Call graph operations
	UpsertCallEdge(ctx context.Context, edge *CallEdge) error
	InsertUnresolvedCall(ctx context.Context, call *UnresolvedCall) error
	ListUnresolvedCalls(ctx context.Context, projectID int64, afterID int64, limit int) ([]*UnresolvedCall, error)
	ListUnresolvedByCaller(ctx context.Context, callerID int64) ([]*UnresolvedCall, error)
	DeleteUnresolvedCalls(ctx context.Context, ids []int64) (int, error)
	DeleteCallsByFile(ctx context.Context, fileID int64) error
	GetCallers(ctx context.Context, projectID int64, calleeName string, limit int) ([]*CallSite, error)
	GetCallees(ctx context.Context, projectID int64, callerName string, limit int) ([]*CallSite, error)
	ListCallEdgesByCaller(ctx context.Context, callerID int64) ([]*CallEdge, error)
	ListCallEdgesByCallee(ctx context.Context, calleeID int64) ([]*CallEdge, error)
	PruneOrphanCallEdges(ctx context.Context) (int64, error)
	CallGraphStats(ctx context.Context, projectID int64) (*GraphStats, error)
	EntryPoints(ctx context.Context, projectID int64, limit int) ([]*Symbol, error)
	LeafFunctions(ctx context.Context, projectID int64, limit int) ([]*Symbol, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)
	DeleteEmbedding(ctx context.Context, chunkID int64) error

	// Search operations
	SearchVector(ctx context.Context, projectID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, projectID int64, matchExpr string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Import operations
	UpsertImport(ctx context.Context, imp *Import) error
	ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error)
	DeleteImportsByFile(ctx context.Context, fileID int64) error

	// Module (scope map) operations
	UpsertModule(ctx context.Context, module *Module) error
	ListModules(ctx context.Context, projectID int64) ([]*Module, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents an indexed codebase
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	GoVersion     string
	TotalFiles    int
	TotalChunks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	PackageName   string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Symbol represents a stored code symbol
type Symbol struct {
	ID            int64
	FileID        int64
	Name          string
	QualifiedName string
	Kind          string
	PackageName   string
	Language      string
	Signature     string
	DocComment    string
	Scope         string
	Receiver      string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	IsTest        bool
	IsAsync       bool
	Complexity    float64
	CreatedAt     time.Time
}

// CallEdge is a resolved caller-to-callee relationship. Identity is
// (CallerID, CalleeID, CallLine); re-inserting the same edge increments
// UsageCount instead of duplicating the row.
type CallEdge struct {
	ID         int64
	CallerID   int64
	CalleeID   int64
	CalleeName string
	CallType   string
	CallLine   int
	UsageCount int
	CreatedAt  time.Time
}

// UnresolvedCall is a call site pending resolution against the
// project-wide symbol table. Identity is (CallerID, CalleeName, CallLine).
type UnresolvedCall struct {
	ID         int64
	CallerID   int64
	CalleeName string
	CallType   string
	CallLine   int
	CreatedAt  time.Time
}

// CallSite joins a call edge with the symbol on its far end, as returned
// by caller/callee queries.
type CallSite struct {
	Symbol     *Symbol
	FilePath   string
	CallType   string
	CallLine   int
	UsageCount int
}

// GraphStats summarizes the call graph for a project
type GraphStats struct {
	EdgeCount       int
	UnresolvedCount int
	CallerCount     int // distinct symbols with outgoing edges
	CalleeCount     int // distinct symbols with incoming edges
}

// Chunk represents a code section for embedding
type Chunk struct {
	ID            int64
	FileID        int64
	SymbolID      *int64 // Nullable
	Content       string
	ContentHash   [32]byte
	TokenCount    int
	StartLine     int
	EndLine       int
	ContextBefore string
	ContextAfter  string
	ChunkType     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Import represents an import statement in a source file
type Import struct {
	ID         int64
	FileID     int64
	ImportPath string
	Alias      string
	IsExternal bool
	CreatedAt  time.Time
}

// Module is one node of the coarse module map used to narrow search
type Module struct {
	ID          int64
	ProjectID   int64
	Path        string // package directory relative to project root
	Name        string
	Purpose     string // package doc summary
	Exports     string // space-joined exported symbol names
	SymbolCount int
	UpdatedAt   time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	SymbolTypes  []string // Filter by symbol kind
	FilePattern  string   // Glob pattern for file paths
	Packages     []string // Filter by package names
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project         *Project
	FilesCount      int
	SymbolsCount    int
	ChunksCount     int
	EmbeddingsCount int
	CallEdgesCount  int
	UnresolvedCount int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	IndexDuration   time.Duration
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}

// ToTypesSymbol converts storage Symbol to types.Symbol
func (s *Symbol) ToTypesSymbol() types.Symbol {
	return types.Symbol{
		ID:            s.ID,
		Name:          s.Name,
		QualifiedName: s.QualifiedName,
		Kind:          types.SymbolKind(s.Kind),
		Package:       s.PackageName,
		Language:      s.Language,
		Signature:     s.Signature,
		DocComment:    s.DocComment,
		Scope:         types.SymbolScope(s.Scope),
		Receiver:      s.Receiver,
		Start: types.Position{
			Line:   s.StartLine,
			Column: s.StartCol,
		},
		End: types.Position{
			Line:   s.EndLine,
			Column: s.EndCol,
		},
		IsTest:     s.IsTest,
		IsAsync:    s.IsAsync,
		Complexity: s.Complexity,
	}
}

// FromTypesSymbol converts types.Symbol to storage Symbol
func FromTypesSymbol(s types.Symbol, fileID int64) *Symbol {
	return &Symbol{
		FileID:        fileID,
		Name:          s.Name,
		QualifiedName: s.QualifiedName,
		Kind:          string(s.Kind),
		PackageName:   s.Package,
		Language:      s.Language,
		Signature:     s.Signature,
		DocComment:    s.DocComment,
		Scope:         string(s.Scope),
		Receiver:      s.Receiver,
		StartLine:     s.Start.Line,
		StartCol:      s.Start.Column,
		EndLine:       s.End.Line,
		EndCol:        s.End.Column,
		IsTest:        s.IsTest,
		IsAsync:       s.IsAsync,
		Complexity:    s.Complexity,
	}
}

