package graph

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/symdex/symdex-mcp/internal/storage"
)

const (
	// maxTraversalDepth caps transitive walks regardless of what the
	// caller requests
	maxTraversalDepth = 5

	// defaultQueryLimit bounds direct caller/callee result sets
	defaultQueryLimit = 50
)

// CallGraph is the full neighborhood of one function: who calls it, what
// it calls, calls that never resolved, and deeper calls reached by
// following callees transitively.
type CallGraph struct {
	Root            []*storage.Symbol
	CalledBy        []*storage.CallSite
	Calls           []*storage.CallSite
	UnresolvedCalls []*storage.UnresolvedCall
	DeeperCalls     []DeeperCall
}

// DeeperCall is a transitive callee, reached through the named intermediate
type DeeperCall struct {
	Via   string
	Site  *storage.CallSite
	Depth int
}

// Callers returns the functions that call the named symbol, most frequent
// first. A name with no presence in the index at all yields ErrNotIndexed;
// an indexed name that nothing calls yields an empty slice.
func (r *Resolver) Callers(ctx context.Context, projectID int64, name string, limit int) ([]*storage.CallSite, error) {
	if err := r.checkIndexed(ctx, projectID, name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return r.storage.GetCallers(ctx, projectID, name, limit)
}

// Callees returns the functions the named symbol calls, ordered by the
// callee's defining file path.
func (r *Resolver) Callees(ctx context.Context, projectID int64, name string, limit int) ([]*storage.CallSite, error) {
	if err := r.checkIndexed(ctx, projectID, name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return r.storage.GetCallees(ctx, projectID, name, limit)
}

func (r *Resolver) checkIndexed(ctx context.Context, projectID int64, name string) error {
	exists, err := r.storage.SymbolNameExists(ctx, projectID, name)
	if err != nil {
		return fmt.Errorf("failed to check symbol: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotIndexed, name)
	}
	return nil
}

// Neighborhood builds the call graph around a function, following callees
// up to depth levels. Depth is clamped to maxTraversalDepth.
func (r *Resolver) Neighborhood(ctx context.Context, projectID int64, name string, depth int) (*CallGraph, error) {
	roots, err := r.storage.FindSymbolsByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	roots = filterCallable(roots)
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, name)
	}

	if depth < 1 {
		depth = 1
	}
	if depth > maxTraversalDepth {
		depth = maxTraversalDepth
	}

	result := &CallGraph{Root: roots}

	result.CalledBy, err = r.storage.GetCallers(ctx, projectID, name, defaultQueryLimit)
	if err != nil {
		return nil, err
	}
	result.Calls, err = r.storage.GetCallees(ctx, projectID, name, defaultQueryLimit)
	if err != nil {
		return nil, err
	}

	for _, root := range roots {
		pending, err := r.storage.ListUnresolvedByCaller(ctx, root.ID)
		if err != nil {
			return nil, err
		}
		result.UnresolvedCalls = append(result.UnresolvedCalls, pending...)
	}

	if depth > 1 {
		result.DeeperCalls, err = r.deeperCalls(ctx, result.Calls, depth)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// deeperCalls follows callee edges breadth-first from the direct callees,
// recording each newly reached symbol with the intermediate it came through.
func (r *Resolver) deeperCalls(ctx context.Context, direct []*storage.CallSite, depth int) ([]DeeperCall, error) {
	visited := make(map[int64]bool)
	frontier := make([]*storage.Symbol, 0, len(direct))
	for _, site := range direct {
		visited[site.Symbol.ID] = true
		frontier = append(frontier, site.Symbol)
	}

	var deeper []DeeperCall
	for level := 2; level <= depth && len(frontier) > 0; level++ {
		var next []*storage.Symbol
		for _, via := range frontier {
			edges, err := r.storage.ListCallEdgesByCaller(ctx, via.ID)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				if visited[edge.CalleeID] {
					continue
				}
				visited[edge.CalleeID] = true

				callee, err := r.storage.GetSymbol(ctx, edge.CalleeID)
				if errors.Is(err, storage.ErrNotFound) {
					// Orphaned edge from a re-index; skip, prune later
					continue
				}
				if err != nil {
					return nil, err
				}
				file, err := r.storage.GetFileByID(ctx, callee.FileID)
				if err != nil {
					return nil, err
				}

				deeper = append(deeper, DeeperCall{
					Via: via.Name,
					Site: &storage.CallSite{
						Symbol:     callee,
						FilePath:   file.FilePath,
						CallType:   edge.CallType,
						CallLine:   edge.CallLine,
						UsageCount: edge.UsageCount,
					},
					Depth: level,
				})
				next = append(next, callee)
			}
		}
		frontier = next
	}
	return deeper, nil
}

// ImpactScore estimates how risky changing a function is, on a 0 to 1
// scale. Direct caller count dominates; reachability from further up the
// graph adds a fixed bump.
func (r *Resolver) ImpactScore(ctx context.Context, projectID int64, name string) (float64, error) {
	callers, err := r.Callers(ctx, projectID, name, defaultQueryLimit)
	if err != nil {
		return 0, err
	}

	score := math.Log(1+float64(len(callers))) / 10

	indirect, err := r.hasIndirectCallers(ctx, callers)
	if err != nil {
		return 0, err
	}
	if indirect {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score, nil
}

// hasIndirectCallers reports whether any direct caller is itself called
func (r *Resolver) hasIndirectCallers(ctx context.Context, callers []*storage.CallSite) (bool, error) {
	for _, site := range callers {
		edges, err := r.storage.ListCallEdgesByCallee(ctx, site.Symbol.ID)
		if err != nil {
			return false, err
		}
		if len(edges) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// EntryPoints returns callable symbols with no recorded incoming calls
func (r *Resolver) EntryPoints(ctx context.Context, projectID int64, limit int) ([]*storage.Symbol, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return r.storage.EntryPoints(ctx, projectID, limit)
}

// LeafFunctions returns callable symbols with no recorded outgoing calls
func (r *Resolver) LeafFunctions(ctx context.Context, projectID int64, limit int) ([]*storage.Symbol, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return r.storage.LeafFunctions(ctx, projectID, limit)
}

// Stats summarizes the project's call graph
func (r *Resolver) Stats(ctx context.Context, projectID int64) (*storage.GraphStats, error) {
	return r.storage.CallGraphStats(ctx, projectID)
}

// Prune drops edges orphaned by re-indexing. Called opportunistically
// after query bursts; never required for correctness.
func (r *Resolver) Prune(ctx context.Context) (int64, error) {
	return r.storage.PruneOrphanCallEdges(ctx)
}
