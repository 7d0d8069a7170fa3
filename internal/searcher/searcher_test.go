package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex/symdex-mcp/internal/embedder"
	"github.com/symdex/symdex-mcp/internal/storage"
	"github.com/symdex/symdex-mcp/pkg/types"
)

// mockEmbedder returns a fixed vector for every text, or a configured error
type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &embedder.Embedding{
		Vector:    m.vector,
		Dimension: len(m.vector),
		Provider:  "mock",
		Model:     "mock-v1",
		Hash:      embedder.ComputeHash(req.Text),
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "mock-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return len(m.vector) }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-v1" }
func (m *mockEmbedder) Close() error     { return nil }

type searchEnv struct {
	store   *storage.SQLiteStorage
	project *storage.Project
	file    *storage.File
}

func setupSearchEnv(t *testing.T) *searchEnv {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	project := &storage.Project{
		RootPath:     t.Name(),
		ModuleName:   "github.com/test/search",
		GoVersion:    "1.25",
		IndexVersion: "1.0.0",
	}
	require.NoError(t, store.CreateProject(ctx, project))

	file := &storage.File{
		ProjectID:   project.ID,
		FilePath:    "internal/auth/login.go",
		PackageName: "auth",
		ContentHash: sha256.Sum256([]byte("login")),
		// Old enough that the recency boost stays neutral in assertions
		ModTime:     time.Now().AddDate(0, 0, -120),
	}
	require.NoError(t, store.UpsertFile(ctx, file))

	return &searchEnv{store: store, project: project, file: file}
}

func (e *searchEnv) addSymbol(t *testing.T, name, docComment string, startLine int) *storage.Symbol {
	sym := &storage.Symbol{
		FileID:      e.file.ID,
		Name:        name,
		Kind:        "function",
		PackageName: e.file.PackageName,
		Language:    "go",
		Signature:   "func " + name + "()",
		DocComment:  docComment,
		Scope:       "exported",
		StartLine:   startLine,
		EndLine:     startLine + 10,
	}
	require.NoError(t, e.store.UpsertSymbol(context.Background(), sym))
	return sym
}

func (e *searchEnv) addChunk(t *testing.T, content string, startLine int) *storage.Chunk {
	chunk := &storage.Chunk{
		FileID:      e.file.ID,
		Content:     content,
		ContentHash: sha256.Sum256([]byte(content)),
		TokenCount:  len(content) / 4,
		StartLine:   startLine,
		EndLine:     startLine + 5,
		ChunkType:   "function",
	}
	require.NoError(t, e.store.UpsertChunk(context.Background(), chunk))
	return chunk
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	env := setupSearchEnv(t)
	s := NewSearcher(env.store, nil, nil)

	_, err := s.Search(context.Background(), SearchRequest{ProjectID: env.project.ID, Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchSymbolNameExactMatch(t *testing.T) {
	env := setupSearchEnv(t)
	env.addSymbol(t, "ValidateToken", "", 10)
	env.addSymbol(t, "RefreshSession", "", 40)

	s := NewSearcher(env.store, nil, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "ValidateToken",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, types.SourceSymbolName, top.Source)
	assert.Equal(t, "ValidateToken", top.Symbol.Name)
	assert.Equal(t, 1, top.Rank)
	assert.LessOrEqual(t, top.RelevanceScore, 1.0)
}

func TestSearchWithoutEmbedderIsDegraded(t *testing.T) {
	env := setupSearchEnv(t)
	env.addSymbol(t, "ValidateToken", "", 10)

	s := NewSearcher(env.store, nil, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "ValidateToken",
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.DegradedSources, "semantic")
	assert.NotEmpty(t, resp.Results)
}

func TestSearchEmbedderFailureIsDegradedNotFatal(t *testing.T) {
	env := setupSearchEnv(t)
	env.addSymbol(t, "ValidateToken", "", 10)

	s := NewSearcher(env.store, &mockEmbedder{err: errors.New("provider down")}, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "ValidateToken",
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.DegradedSources, "semantic")
	assert.NotEmpty(t, resp.Results)
}

func TestSearchKeywordFallsBackToAnyTerm(t *testing.T) {
	env := setupSearchEnv(t)
	env.addChunk(t, "session tokens expire after one hour", 100)
	env.addChunk(t, "renders the template footer", 200)

	s := NewSearcher(env.store, nil, nil)

	// "session zzzmissing" matches nothing with implicit AND; the
	// any-term fallback still surfaces the session chunk
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "session zzzmissing",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, types.SourceKeyword, resp.Results[0].Source)
	assert.Contains(t, resp.Results[0].Content, "session tokens")
}

func TestSearchSemanticSource(t *testing.T) {
	env := setupSearchEnv(t)
	chunk := env.addChunk(t, "retry with exponential backoff", 100)

	vector := []float32{1, 0, 0, 0}
	require.NoError(t, env.store.UpsertEmbedding(context.Background(), &storage.Embedding{
		ChunkID:   chunk.ID,
		Vector:    storage.SerializeVector(vector),
		Dimension: len(vector),
		Provider:  "mock",
		Model:     "mock-v1",
	}))

	s := NewSearcher(env.store, &mockEmbedder{vector: vector}, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "transient failure handling",
	})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)

	var semantic *types.SearchResult
	for i := range resp.Results {
		if resp.Results[i].Source == types.SourceSemantic {
			semantic = &resp.Results[i]
			break
		}
	}
	require.NotNil(t, semantic, "expected a semantic result")
	assert.Equal(t, chunk.ID, semantic.ChunkID)
}

func TestSearchDocumentedSymbolRanksHigher(t *testing.T) {
	env := setupSearchEnv(t)
	env.addSymbol(t, "SessionStart", "", 10)
	env.addSymbol(t, "SessionEnd", "SessionEnd closes the session and flushes audit logs.", 40)

	s := NewSearcher(env.store, nil, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "session",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "SessionEnd", resp.Results[0].Symbol.Name)
	assert.Equal(t, "SessionStart", resp.Results[1].Symbol.Name)
	assert.Greater(t, resp.Results[0].RelevanceScore, resp.Results[1].RelevanceScore)
}

func TestSearchCacheHit(t *testing.T) {
	env := setupSearchEnv(t)
	env.addSymbol(t, "ValidateToken", "", 10)

	s := NewSearcher(env.store, nil, nil)
	req := SearchRequest{
		ProjectID: env.project.ID,
		Query:     "ValidateToken",
		UseCache:  true,
	}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalResults, second.TotalResults)

	s.InvalidateCache()
	third, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestDedupeByLocationKeepsHigherScore(t *testing.T) {
	loc := &types.FileInfo{Path: "internal/auth/login.go", StartLine: 10}
	other := &types.FileInfo{Path: "internal/auth/login.go", StartLine: 99}

	candidates := []candidate{
		{result: types.SearchResult{File: loc, RelevanceScore: 0.80, Source: types.SourceKeyword}},
		{result: types.SearchResult{File: loc, RelevanceScore: 0.95, Source: types.SourceSymbolName}},
		{result: types.SearchResult{File: other, RelevanceScore: 0.60, Source: types.SourceKeyword}},
	}

	deduped := dedupeByLocation(candidates)
	require.Len(t, deduped, 2)

	// The shared location survives once with the higher score, never a sum
	assert.Equal(t, 0.95, deduped[0].result.RelevanceScore)
	assert.Equal(t, types.SourceSymbolName, deduped[0].result.Source)
	assert.Equal(t, 0.60, deduped[1].result.RelevanceScore)
}

func TestDedupeByLocationPreservesProximity(t *testing.T) {
	loc := &types.FileInfo{Path: "a.go", StartLine: 1}
	candidates := []candidate{
		{result: types.SearchResult{File: loc, RelevanceScore: 0.9}},
		{result: types.SearchResult{File: loc, RelevanceScore: 0.5}, proximate: true},
	}
	deduped := dedupeByLocation(candidates)
	require.Len(t, deduped, 1)
	assert.Equal(t, 0.9, deduped[0].result.RelevanceScore)
	assert.True(t, deduped[0].proximate)
}

func TestApplyBoostsProximity(t *testing.T) {
	s := NewSearcher(nil, nil, nil)
	candidates := []candidate{
		{result: types.SearchResult{
			ChunkID:        7,
			RelevanceScore: 0.5,
			File:           &types.FileInfo{Path: "a.go", StartLine: 1},
		}},
		{result: types.SearchResult{
			ChunkID:        8,
			RelevanceScore: 0.5,
			File:           &types.FileInfo{Path: "b.go", StartLine: 1},
		}},
	}

	s.applyBoosts(context.Background(), SearchRequest{Query: "x"}, []string{"x"}, candidates, map[int64]bool{7: true})

	assert.InDelta(t, 0.5*boostProximity, candidates[0].result.RelevanceScore, 0.001)
	assert.InDelta(t, 0.5, candidates[1].result.RelevanceScore, 0.001)
}

func TestApplyBoostsClampsAtOne(t *testing.T) {
	s := NewSearcher(nil, nil, nil)
	candidates := []candidate{
		{
			result: types.SearchResult{
				ChunkID:        7,
				RelevanceScore: 0.95,
				File:           &types.FileInfo{Path: "a.go", StartLine: 1},
			},
			modTime: time.Now(),
		},
	}

	s.applyBoosts(context.Background(), SearchRequest{Query: "x"}, []string{"x"}, candidates, map[int64]bool{7: true})
	assert.Equal(t, 1.0, candidates[0].result.RelevanceScore)
}

func TestSearchLimitTruncatesAndRanks(t *testing.T) {
	env := setupSearchEnv(t)
	for i, name := range []string{"SessionOpen", "SessionClose", "SessionRenew", "SessionAudit"} {
		env.addSymbol(t, name, "", 10+i*20)
	}

	s := NewSearcher(env.store, nil, nil)
	resp, err := s.Search(context.Background(), SearchRequest{
		ProjectID: env.project.ID,
		Query:     "session",
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
}
