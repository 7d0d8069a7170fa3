package chunker

import (
	"fmt"
	"os"
	"strings"

	"github.com/symdex/symdex-mcp/pkg/types"
)

const (
	// MaxTokensPerChunk caps the estimated token count of a single chunk.
	MaxTokensPerChunk = 1000

	// TokensPerChar estimates tokens from character count (chars/4).
	TokensPerChar = 4

	// maxRelatedMethods bounds how many method signatures a type chunk
	// carries as trailing context.
	maxRelatedMethods = 8
)

// Chunker slices a parsed Go file into embedding-sized chunks, one per
// top-level symbol, each carrying enough surrounding context to stand alone.
type Chunker struct{}

// New creates a Chunker.
func New() *Chunker {
	return &Chunker{}
}

// ChunkFile produces chunks for every symbol in parseResult. The parser may
// have recovered from syntax errors, so the file is not re-parsed here; the
// symbol positions it extracted are trusted as-is. Files with no symbols
// yield a single file-level chunk.
func (c *Chunker) ChunkFile(filePath string, parseResult *types.ParseResult, fileID int64) ([]*types.Chunk, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	preamble := buildPreamble(parseResult)

	chunks := make([]*types.Chunk, 0, len(parseResult.Symbols))
	for i := range parseResult.Symbols {
		sym := &parseResult.Symbols[i]
		// Fields ride along inside their struct's chunk.
		if sym.Kind == types.KindField {
			continue
		}

		chunk := c.symbolChunk(sym, parseResult.Symbols, lines, preamble, fileID)
		if chunk == nil {
			continue
		}
		if chunk.TokenCount > MaxTokensPerChunk {
			chunks = append(chunks, c.splitOversized(chunk)...)
		} else {
			chunks = append(chunks, chunk)
		}
	}

	if len(chunks) == 0 && len(lines) > 0 {
		if chunk := c.fileChunk(lines, fileID); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// symbolChunk cuts one symbol's source lines into a chunk. Returns nil when
// the recorded positions fall outside the file.
func (c *Chunker) symbolChunk(sym *types.Symbol, all []types.Symbol, lines []string, preamble string, fileID int64) *types.Chunk {
	if sym.Start.Line <= 0 || sym.End.Line <= 0 || sym.Start.Line > len(lines) {
		return nil
	}

	endIdx := sym.End.Line
	if endIdx > len(lines) {
		endIdx = len(lines)
	}

	chunk := &types.Chunk{
		FileID:        fileID,
		Content:       strings.Join(lines[sym.Start.Line-1:endIdx], "\n"),
		ContextBefore: preamble,
		ContextAfter:  relatedContext(sym, all),
		StartLine:     sym.Start.Line,
		EndLine:       endIdx,
		ChunkType:     chunkTypeFor(sym.Kind),
	}
	chunk.ComputeTokenCount()
	chunk.ComputeContentHash()

	return chunk
}

// fileChunk wraps the whole file, used when no symbols were extracted.
func (c *Chunker) fileChunk(lines []string, fileID int64) *types.Chunk {
	if len(lines) == 0 {
		return nil
	}

	chunk := &types.Chunk{
		FileID:    fileID,
		Content:   strings.Join(lines, "\n"),
		StartLine: 1,
		EndLine:   len(lines),
		ChunkType: types.ChunkPackage,
	}
	chunk.ComputeTokenCount()
	chunk.ComputeContentHash()

	return chunk
}

// splitOversized breaks a chunk into consecutive line windows that each fit
// the token cap. The preamble repeats on every window and counts against its
// budget. Single-line chunks cannot be split and pass through unchanged.
func (c *Chunker) splitOversized(chunk *types.Chunk) []*types.Chunk {
	lines := strings.Split(chunk.Content, "\n")
	if len(lines) < 2 {
		return []*types.Chunk{chunk}
	}

	budget := MaxTokensPerChunk*TokensPerChar - len(chunk.ContextBefore) - len(chunk.ContextAfter)
	if budget < TokensPerChar {
		budget = TokensPerChar
	}

	var parts []*types.Chunk
	start := 0
	size := 0

	flush := func(end int) {
		part := &types.Chunk{
			FileID:        chunk.FileID,
			Content:       strings.Join(lines[start:end], "\n"),
			ContextBefore: chunk.ContextBefore,
			ContextAfter:  chunk.ContextAfter,
			StartLine:     chunk.StartLine + start,
			EndLine:       chunk.StartLine + end - 1,
			ChunkType:     chunk.ChunkType,
		}
		part.ComputeTokenCount()
		part.ComputeContentHash()
		parts = append(parts, part)
	}

	for i, line := range lines {
		cost := len(line) + 1
		if size > 0 && size+cost > budget {
			flush(i)
			start = i
			size = 0
		}
		size += cost
	}
	flush(len(lines))

	return parts
}

// buildPreamble renders the package clause and import block that precede
// every symbol chunk, so an embedding sees the names the code refers to.
func buildPreamble(parseResult *types.ParseResult) string {
	var b strings.Builder

	if parseResult.PackageName != "" {
		fmt.Fprintf(&b, "package %s\n\n", parseResult.PackageName)
	}

	if len(parseResult.Imports) > 0 {
		b.WriteString("import (\n")
		for _, imp := range parseResult.Imports {
			if imp.Alias != "" {
				fmt.Fprintf(&b, "\t%s %q\n", imp.Alias, imp.Path)
			} else {
				fmt.Fprintf(&b, "\t%q\n", imp.Path)
			}
		}
		b.WriteString(")\n")
	}

	return b.String()
}

// relatedContext points a chunk at its structural neighbors: a method chunk
// names its receiver type, a struct chunk lists its methods.
func relatedContext(sym *types.Symbol, all []types.Symbol) string {
	var related []string

	switch {
	case sym.Kind == types.KindMethod && sym.Receiver != "":
		for i := range all {
			s := &all[i]
			if s.Kind == types.KindStruct && s.Name == sym.Receiver {
				related = append(related, fmt.Sprintf("// Receiver: %s", s.Signature))
				break
			}
		}
	case sym.Kind == types.KindStruct:
		for i := range all {
			s := &all[i]
			if s.Kind == types.KindMethod && s.Receiver == sym.Name {
				related = append(related, fmt.Sprintf("// Method: %s", s.Signature))
				if len(related) == maxRelatedMethods {
					break
				}
			}
		}
	}

	return strings.Join(related, "\n")
}

func chunkTypeFor(kind types.SymbolKind) types.ChunkType {
	switch kind {
	case types.KindFunction:
		return types.ChunkFunction
	case types.KindMethod:
		return types.ChunkMethod
	case types.KindStruct, types.KindInterface, types.KindType:
		return types.ChunkTypeDecl
	case types.KindConst:
		return types.ChunkConstGroup
	case types.KindVar:
		return types.ChunkVarGroup
	default:
		return types.ChunkPackage
	}
}

// EstimateTokenCount estimates the token count of text.
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
