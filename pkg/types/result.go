package types

// MatchSource identifies which lookup produced a search result
type MatchSource string

const (
	SourceSemantic   MatchSource = "semantic"
	SourceKeyword    MatchSource = "keyword"
	SourceSymbolName MatchSource = "symbol_name"
	SourceCallGraph  MatchSource = "call_graph"
)

// SearchResult represents a single ranked search result.
//
// Results are deduplicated by (File.Path, File.StartLine); when two lookups
// produce the same location only the higher-scored candidate survives.
type SearchResult struct {
	// Identification
	ChunkID int64 // 0 for symbol-name and call-graph matches
	Rank    int   // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Final score after all boost stages, in [0, 1]
	Source         MatchSource

	// Metadata
	Symbol  *Symbol // Nullable - may not have an associated symbol
	File    *FileInfo
	Content string // Chunk content or symbol signature
	Context string // Surrounding context, when available
}

// FileInfo contains file metadata for a search result
type FileInfo struct {
	Path      string // Relative to project root
	Package   string
	StartLine int
	EndLine   int
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.File == nil {
		return ErrMissingFileInfo
	}

	return nil
}

// DedupKey returns the location identity used by the merge stage
func (sr *SearchResult) DedupKey() (string, int) {
	if sr.File == nil {
		return "", 0
	}
	return sr.File.Path, sr.File.StartLine
}
