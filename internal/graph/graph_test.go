package graph

import (
	"context"
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex/symdex-mcp/internal/storage"
)

type testProject struct {
	store   *storage.SQLiteStorage
	project *storage.Project
	fileID  int64
}

func setupGraph(t *testing.T) *testProject {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	project := &storage.Project{
		RootPath:     t.Name(),
		ModuleName:   "github.com/test/graph",
		GoVersion:    "1.25",
		IndexVersion: "1.0.0",
	}
	require.NoError(t, store.CreateProject(ctx, project))

	file := &storage.File{
		ProjectID:   project.ID,
		FilePath:    "pkg/main.go",
		PackageName: "main",
		ContentHash: sha256.Sum256([]byte("main")),
		ModTime:     time.Now(),
	}
	require.NoError(t, store.UpsertFile(ctx, file))

	return &testProject{store: store, project: project, fileID: file.ID}
}

func (tp *testProject) addFunc(t *testing.T, name string, startLine int) *storage.Symbol {
	sym := &storage.Symbol{
		FileID:      tp.fileID,
		Name:        name,
		Kind:        "function",
		PackageName: "main",
		Language:    "go",
		Scope:       "exported",
		StartLine:   startLine,
		EndLine:     startLine + 10,
	}
	require.NoError(t, tp.store.UpsertSymbol(context.Background(), sym))
	return sym
}

func (tp *testProject) addPending(t *testing.T, callerID int64, callee string, line int) {
	call := &storage.UnresolvedCall{
		CallerID: callerID, CalleeName: callee, CallType: "direct", CallLine: line,
	}
	require.NoError(t, tp.store.InsertUnresolvedCall(context.Background(), call))
}

func TestResolvePendingLinksKnownCallees(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	caller := tp.addFunc(t, "Run", 10)
	callee := tp.addFunc(t, "step", 40)
	tp.addPending(t, caller.ID, "step", 12)
	tp.addPending(t, caller.ID, "fmt.Println", 14)

	r := NewResolver(tp.store)
	resolved, remaining, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 1, remaining)

	edges, err := tp.store.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, callee.ID, edges[0].CalleeID)

	// The external call stays pending; that is its terminal state
	pending, err := tp.store.ListUnresolvedCalls(ctx, tp.project.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "fmt.Println", pending[0].CalleeName)
}

func TestResolvePendingScansPastExternalBacklog(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	caller := tp.addFunc(t, "Run", 10)
	callee := tp.addFunc(t, "step", 40)

	// A full first page of unresolvable externals queued ahead of the
	// resolvable call; the scan must still reach it
	for i := 0; i < resolveBatchSize; i++ {
		tp.addPending(t, caller.ID, fmt.Sprintf("ext.Call%d", i), 100+i)
	}
	tp.addPending(t, caller.ID, "step", 12)

	r := NewResolver(tp.store)
	resolved, remaining, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, resolveBatchSize, remaining)

	edges, err := tp.store.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, callee.ID, edges[0].CalleeID)
}

func TestResolvePendingLinksAllCandidates(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	caller := tp.addFunc(t, "Run", 10)
	first := tp.addFunc(t, "Process", 40)
	second := tp.addFunc(t, "Process", 80)
	tp.addPending(t, caller.ID, "Process", 12)

	r := NewResolver(tp.store)
	resolved, _, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	// Ambiguity links to every candidate, not a guessed winner
	edges, err := tp.store.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	targets := map[int64]bool{edges[0].CalleeID: true, edges[1].CalleeID: true}
	assert.True(t, targets[first.ID])
	assert.True(t, targets[second.ID])
}

func TestResolvePendingIsIdempotent(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	caller := tp.addFunc(t, "Run", 10)
	tp.addFunc(t, "step", 40)
	tp.addPending(t, caller.ID, "step", 12)

	r := NewResolver(tp.store)
	_, _, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	resolved, remaining, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Zero(t, remaining)

	edges, err := tp.store.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	assert.Equal(t, 1, edges[0].UsageCount)
}

func TestResolvePendingQualifiedNameFallsBack(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	caller := tp.addFunc(t, "main", 10)
	run := &storage.Symbol{
		FileID:        tp.fileID,
		Name:          "Run",
		QualifiedName: "Worker.Run",
		Kind:          "method",
		PackageName:   "main",
		Language:      "go",
		Scope:         "exported",
		Receiver:      "Worker",
		StartLine:     40,
		EndLine:       60,
	}
	require.NoError(t, tp.store.UpsertSymbol(ctx, run))

	// The qualifier is a variable name the symbol table never saw;
	// resolution retries with the bare method name
	tp.addPending(t, caller.ID, "w.Run", 12)

	r := NewResolver(tp.store)
	resolved, _, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	edges, err := tp.store.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, run.ID, edges[0].CalleeID)
}

func TestCallersDistinguishesNotIndexedFromCallFree(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	tp.addFunc(t, "Lonely", 10)

	r := NewResolver(tp.store)

	_, err := r.Callers(ctx, tp.project.ID, "NeverHeardOf", 0)
	assert.ErrorIs(t, err, ErrNotIndexed)

	callers, err := r.Callers(ctx, tp.project.ID, "Lonely", 0)
	require.NoError(t, err)
	assert.Empty(t, callers)

	callees, err := r.Callees(ctx, tp.project.ID, "Lonely", 0)
	require.NoError(t, err)
	assert.Empty(t, callees)
}

func TestNeighborhoodTraversesTransitively(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	top := tp.addFunc(t, "Top", 10)
	mid := tp.addFunc(t, "Mid", 40)
	deep := tp.addFunc(t, "Deep", 80)
	deepest := tp.addFunc(t, "Deepest", 120)

	tp.addPending(t, top.ID, "Mid", 12)
	tp.addPending(t, mid.ID, "Deep", 42)
	tp.addPending(t, deep.ID, "Deepest", 82)
	tp.addPending(t, top.ID, "outside.Call", 14)

	r := NewResolver(tp.store)
	_, _, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)

	g, err := r.Neighborhood(ctx, tp.project.ID, "Top", 3)
	require.NoError(t, err)

	require.Len(t, g.Calls, 1)
	assert.Equal(t, "Mid", g.Calls[0].Symbol.Name)

	require.Len(t, g.UnresolvedCalls, 1)
	assert.Equal(t, "outside.Call", g.UnresolvedCalls[0].CalleeName)

	// Depth 3 reaches Deep (via Mid) and Deepest (via Deep)
	require.Len(t, g.DeeperCalls, 2)
	assert.Equal(t, "Mid", g.DeeperCalls[0].Via)
	assert.Equal(t, "Deep", g.DeeperCalls[0].Site.Symbol.Name)
	assert.Equal(t, 2, g.DeeperCalls[0].Depth)
	assert.Equal(t, "Deep", g.DeeperCalls[1].Via)
	assert.Equal(t, deepest.ID, g.DeeperCalls[1].Site.Symbol.ID)
	assert.Equal(t, "Deepest", g.DeeperCalls[1].Site.Symbol.Name)
	assert.Equal(t, 3, g.DeeperCalls[1].Depth)
}

func TestNeighborhoodClampsDepth(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	// Chain of 8 functions; only 5 levels should be walked
	names := []string{"F0", "F1", "F2", "F3", "F4", "F5", "F6", "F7"}
	syms := make([]*storage.Symbol, len(names))
	for i, name := range names {
		syms[i] = tp.addFunc(t, name, 10+i*20)
	}
	for i := 0; i < len(syms)-1; i++ {
		tp.addPending(t, syms[i].ID, names[i+1], 12+i*20)
	}

	r := NewResolver(tp.store)
	_, _, err := r.ResolvePending(ctx, tp.project.ID)
	require.NoError(t, err)

	g, err := r.Neighborhood(ctx, tp.project.ID, "F0", 100)
	require.NoError(t, err)

	maxDepth := 0
	for _, dc := range g.DeeperCalls {
		if dc.Depth > maxDepth {
			maxDepth = dc.Depth
		}
	}
	assert.Equal(t, 5, maxDepth)
}

func TestImpactScore(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	target := tp.addFunc(t, "Core", 10)
	direct := tp.addFunc(t, "Direct", 40)
	upstream := tp.addFunc(t, "Upstream", 80)
	tp.addFunc(t, "Isolated", 120)

	require.NoError(t, tp.store.UpsertCallEdge(ctx, &storage.CallEdge{
		CallerID: direct.ID, CalleeID: target.ID, CalleeName: "Core", CallType: "direct", CallLine: 42,
	}))
	require.NoError(t, tp.store.UpsertCallEdge(ctx, &storage.CallEdge{
		CallerID: upstream.ID, CalleeID: direct.ID, CalleeName: "Direct", CallType: "direct", CallLine: 82,
	}))

	r := NewResolver(tp.store)

	// One direct caller that is itself called: ln(2)/10 + 0.2
	score, err := r.ImpactScore(ctx, tp.project.ID, "Core")
	require.NoError(t, err)
	assert.InDelta(t, 0.269, score, 0.01)

	score, err = r.ImpactScore(ctx, tp.project.ID, "Isolated")
	require.NoError(t, err)
	assert.Zero(t, score)

	_, err = r.ImpactScore(ctx, tp.project.ID, "Ghost")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestEntryPointsAndLeaves(t *testing.T) {
	tp := setupGraph(t)
	ctx := context.Background()

	entry := tp.addFunc(t, "Entry", 10)
	leaf := tp.addFunc(t, "Leaf", 40)

	require.NoError(t, tp.store.UpsertCallEdge(ctx, &storage.CallEdge{
		CallerID: entry.ID, CalleeID: leaf.ID, CalleeName: "Leaf", CallType: "direct", CallLine: 12,
	}))

	r := NewResolver(tp.store)

	entries, err := r.EntryPoints(ctx, tp.project.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Entry", entries[0].Name)

	leaves, err := r.LeafFunctions(ctx, tp.project.ID, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "Leaf", leaves[0].Name)

	stats, err := r.Stats(ctx, tp.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgeCount)
}
