package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertCallEdgeBumpsUsageCount(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	caller := createTestSymbol(t, s, file.ID, "Handler", 10)
	callee := createTestSymbol(t, s, file.ID, "Validate", 40)

	edge := &CallEdge{CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Validate", CallType: "direct", CallLine: 12}
	require.NoError(t, s.UpsertCallEdge(ctx, edge))
	assert.Equal(t, 1, edge.UsageCount)

	// Recording the same edge key increments the counter, no new row
	again := &CallEdge{CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Validate", CallType: "direct", CallLine: 12}
	require.NoError(t, s.UpsertCallEdge(ctx, again))
	assert.Equal(t, edge.ID, again.ID)
	assert.Equal(t, 2, again.UsageCount)

	// A different line is a distinct edge
	other := &CallEdge{CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Validate", CallType: "direct", CallLine: 20}
	require.NoError(t, s.UpsertCallEdge(ctx, other))
	assert.NotEqual(t, edge.ID, other.ID)
	assert.Equal(t, 1, other.UsageCount)

	edges, err := s.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestInsertUnresolvedCallDeduplicates(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	caller := createTestSymbol(t, s, file.ID, "Handler", 10)

	call := &UnresolvedCall{CallerID: caller.ID, CalleeName: "externalFn", CallType: "direct", CallLine: 15}
	require.NoError(t, s.InsertUnresolvedCall(ctx, call))

	dup := &UnresolvedCall{CallerID: caller.ID, CalleeName: "externalFn", CallType: "direct", CallLine: 15}
	require.NoError(t, s.InsertUnresolvedCall(ctx, dup))

	pending, err := s.ListUnresolvedCalls(ctx, project.ID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDeleteUnresolvedCalls(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	caller := createTestSymbol(t, s, file.ID, "Handler", 10)

	for i, name := range []string{"a", "b", "c"} {
		call := &UnresolvedCall{CallerID: caller.ID, CalleeName: name, CallType: "direct", CallLine: 20 + i}
		require.NoError(t, s.InsertUnresolvedCall(ctx, call))
	}

	pending, err := s.ListUnresolvedCalls(ctx, project.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	deleted, err := s.DeleteUnresolvedCalls(ctx, []int64{pending[0].ID, pending[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := s.ListUnresolvedCalls(ctx, project.ID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	deleted, err = s.DeleteUnresolvedCalls(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestListUnresolvedCallsPagesByCursor(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	caller := createTestSymbol(t, s, file.ID, "Handler", 10)

	for i, name := range []string{"a", "b", "c"} {
		call := &UnresolvedCall{CallerID: caller.ID, CalleeName: name, CallType: "direct", CallLine: 20 + i}
		require.NoError(t, s.InsertUnresolvedCall(ctx, call))
	}

	first, err := s.ListUnresolvedCalls(ctx, project.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// The cursor resumes strictly after the last seen row
	second, err := s.ListUnresolvedCalls(ctx, project.ID, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].CalleeName)

	empty, err := s.ListUnresolvedCalls(ctx, project.ID, second[0].ID, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetCallersOrderedByUsage(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	callee := createTestSymbol(t, s, file.ID, "SaveOrder", 100)
	rare := createTestSymbol(t, s, file.ID, "RareCaller", 10)
	frequent := createTestSymbol(t, s, file.ID, "FrequentCaller", 40)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: rare.ID, CalleeID: callee.ID, CalleeName: "SaveOrder", CallType: "direct", CallLine: 12,
	}))
	heavy := &CallEdge{CallerID: frequent.ID, CalleeID: callee.ID, CalleeName: "SaveOrder", CallType: "direct", CallLine: 45}
	require.NoError(t, s.UpsertCallEdge(ctx, heavy))
	require.NoError(t, s.UpsertCallEdge(ctx, heavy))
	require.NoError(t, s.UpsertCallEdge(ctx, heavy))

	callers, err := s.GetCallers(ctx, project.ID, "SaveOrder", 50)
	require.NoError(t, err)
	require.Len(t, callers, 2)
	assert.Equal(t, "FrequentCaller", callers[0].Symbol.Name)
	assert.Equal(t, 3, callers[0].UsageCount)
	assert.Equal(t, "RareCaller", callers[1].Symbol.Name)
}

func TestGetCallersAggregatesCallSites(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	callee := createTestSymbol(t, s, file.ID, "process", 100)
	once := createTestSymbol(t, s, file.ID, "handle", 10)
	twice := createTestSymbol(t, s, file.ID, "main", 30)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: once.ID, CalleeID: callee.ID, CalleeName: "process", CallType: "direct", CallLine: 12,
	}))
	// Two call sites at distinct lines, each a separate edge row
	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: twice.ID, CalleeID: callee.ID, CalleeName: "process", CallType: "direct", CallLine: 32,
	}))
	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: twice.ID, CalleeID: callee.ID, CalleeName: "process", CallType: "direct", CallLine: 36,
	}))

	callers, err := s.GetCallers(ctx, project.ID, "process", 50)
	require.NoError(t, err)

	// One row per caller; the two-site caller sums to 2 and ranks first
	require.Len(t, callers, 2)
	assert.Equal(t, "main", callers[0].Symbol.Name)
	assert.Equal(t, 2, callers[0].UsageCount)
	assert.Equal(t, 32, callers[0].CallLine)
	assert.Equal(t, "handle", callers[1].Symbol.Name)
	assert.Equal(t, 1, callers[1].UsageCount)
}

func TestGetCalleesOrderedByFilePath(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	fileA := createTestFile(t, s, project.ID, "pkg/aaa.go")
	fileZ := createTestFile(t, s, project.ID, "pkg/zzz.go")
	caller := createTestSymbol(t, s, fileA.ID, "Orchestrate", 10)
	early := createTestSymbol(t, s, fileA.ID, "StepOne", 100)
	late := createTestSymbol(t, s, fileZ.ID, "StepTwo", 100)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: caller.ID, CalleeID: late.ID, CalleeName: "StepTwo", CallType: "direct", CallLine: 14,
	}))
	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: caller.ID, CalleeID: early.ID, CalleeName: "StepOne", CallType: "direct", CallLine: 12,
	}))

	callees, err := s.GetCallees(ctx, project.ID, "Orchestrate", 50)
	require.NoError(t, err)
	require.Len(t, callees, 2)
	assert.Equal(t, "pkg/aaa.go", callees[0].FilePath)
	assert.Equal(t, "StepOne", callees[0].Symbol.Name)
	assert.Equal(t, "pkg/zzz.go", callees[1].FilePath)
}

func TestOrphanEdgesExcludedAndPruned(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	fileA := createTestFile(t, s, project.ID, "pkg/a.go")
	fileB := createTestFile(t, s, project.ID, "pkg/b.go")
	caller := createTestSymbol(t, s, fileA.ID, "Caller", 10)
	callee := createTestSymbol(t, s, fileB.ID, "Callee", 10)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Callee", CallType: "direct", CallLine: 12,
	}))

	// Re-indexing b.go replaces its symbols, orphaning the edge
	require.NoError(t, s.DeleteSymbolsByFile(ctx, fileB.ID))

	// The stale edge never surfaces in query results
	callers, err := s.GetCallers(ctx, project.ID, "Callee", 50)
	require.NoError(t, err)
	assert.Empty(t, callers)

	pruned, err := s.PruneOrphanCallEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	// Pruning again is a no-op
	pruned, err = s.PruneOrphanCallEdges(ctx)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestDeleteCallsByFile(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	caller := createTestSymbol(t, s, file.ID, "Caller", 10)
	callee := createTestSymbol(t, s, file.ID, "Callee", 40)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Callee", CallType: "direct", CallLine: 12,
	}))
	require.NoError(t, s.InsertUnresolvedCall(ctx, &UnresolvedCall{
		CallerID: caller.ID, CalleeName: "missing", CallType: "direct", CallLine: 14,
	}))

	require.NoError(t, s.DeleteCallsByFile(ctx, file.ID))

	edges, err := s.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	pending, err := s.ListUnresolvedByCaller(ctx, caller.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteCallsByFileDemotesInboundEdges(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	callerFile := createTestFile(t, s, project.ID, "pkg/caller.go")
	calleeFile := createTestFile(t, s, project.ID, "pkg/callee.go")
	caller := createTestSymbol(t, s, callerFile.ID, "Caller", 10)
	callee := createTestSymbol(t, s, calleeFile.ID, "Target", 10)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: caller.ID, CalleeID: callee.ID, CalleeName: "Target", CallType: "direct", CallLine: 12,
	}))

	// Reindexing the callee's file replaces its symbol ids; the inbound
	// edge must fall back to pending instead of disappearing
	require.NoError(t, s.DeleteCallsByFile(ctx, calleeFile.ID))

	edges, err := s.ListCallEdgesByCaller(ctx, caller.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	pending, err := s.ListUnresolvedByCaller(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Target", pending[0].CalleeName)
	assert.Equal(t, 12, pending[0].CallLine)
}

func TestEntryPointsAndLeafFunctions(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	top := createTestSymbol(t, s, file.ID, "Run", 10)
	mid := createTestSymbol(t, s, file.ID, "process", 40)
	leaf := createTestSymbol(t, s, file.ID, "format", 80)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: top.ID, CalleeID: mid.ID, CalleeName: "process", CallType: "direct", CallLine: 12,
	}))
	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: mid.ID, CalleeID: leaf.ID, CalleeName: "format", CallType: "direct", CallLine: 45,
	}))

	entries, err := s.EntryPoints(ctx, project.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Run", entries[0].Name)

	leaves, err := s.LeafFunctions(ctx, project.ID, 50)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "format", leaves[0].Name)
}

func TestCallGraphStats(t *testing.T) {
	s := setupTestDB(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	project := createTestProject(t, s)
	file := createTestFile(t, s, project.ID, "pkg/a.go")
	a := createTestSymbol(t, s, file.ID, "A", 10)
	b := createTestSymbol(t, s, file.ID, "B", 40)
	c := createTestSymbol(t, s, file.ID, "C", 80)

	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: a.ID, CalleeID: b.ID, CalleeName: "B", CallType: "direct", CallLine: 12,
	}))
	require.NoError(t, s.UpsertCallEdge(ctx, &CallEdge{
		CallerID: a.ID, CalleeID: c.ID, CalleeName: "C", CallType: "direct", CallLine: 14,
	}))
	require.NoError(t, s.InsertUnresolvedCall(ctx, &UnresolvedCall{
		CallerID: b.ID, CalleeName: "fmt.Println", CallType: "method", CallLine: 42,
	}))

	stats, err := s.CallGraphStats(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EdgeCount)
	assert.Equal(t, 1, stats.UnresolvedCount)
	assert.Equal(t, 1, stats.CallerCount)
	assert.Equal(t, 2, stats.CalleeCount)
}
