package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/symdex/symdex-mcp/internal/storage"
)

var (
	// ErrNotIndexed is returned when a queried symbol name has never been
	// seen in the project. Distinct from an indexed symbol that simply has
	// no recorded calls.
	ErrNotIndexed = errors.New("symbol not indexed")
)

// resolveBatchSize bounds how many pending calls one resolution pass loads
const resolveBatchSize = 500

// Resolver maintains the two-phase call graph: call sites are recorded as
// unresolved during per-file indexing, then linked against the project-wide
// symbol table once all files are in.
type Resolver struct {
	storage storage.Storage
}

// NewResolver creates a call graph resolver backed by the given storage
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{storage: store}
}

// ResolvePending scans pending call sites and links every one whose callee
// name now matches at least one stored symbol. Ambiguous names link to ALL
// candidates; the graph is a multigraph and later queries surface every
// possibility rather than guessing. Sites that stay unmatched remain
// pending, which is the expected terminal state for calls into external
// dependencies.
//
// The pass is idempotent: re-running it converges without duplicating
// edges because edge upserts key on (caller, callee, line).
func (r *Resolver) ResolvePending(ctx context.Context, projectID int64) (resolved, remaining int, err error) {
	// afterID is a keyset cursor over unresolved_calls.id. Rows that stay
	// pending do not block the scan: the cursor always advances past them,
	// so resolvable calls queued behind a backlog of externals are reached.
	var afterID int64
	for {
		pending, err := r.storage.ListUnresolvedCalls(ctx, projectID, afterID, resolveBatchSize)
		if err != nil {
			return resolved, remaining, fmt.Errorf("failed to list pending calls: %w", err)
		}
		if len(pending) == 0 {
			return resolved, remaining, nil
		}
		afterID = pending[len(pending)-1].ID

		var linkedIDs []int64
		for _, call := range pending {
			callable, err := r.findCallable(ctx, projectID, call.CalleeName)
			if err != nil {
				return resolved, remaining, fmt.Errorf("failed to find candidates for %q: %w", call.CalleeName, err)
			}
			if len(callable) == 0 {
				remaining++
				continue
			}

			for _, candidate := range callable {
				edge := &storage.CallEdge{
					CallerID:   call.CallerID,
					CalleeID:   candidate.ID,
					CalleeName: call.CalleeName,
					CallType:   call.CallType,
					CallLine:   call.CallLine,
				}
				if err := r.storage.UpsertCallEdge(ctx, edge); err != nil {
					return resolved, remaining, fmt.Errorf("failed to link call edge: %w", err)
				}
			}
			linkedIDs = append(linkedIDs, call.ID)
			resolved++
		}

		if len(linkedIDs) > 0 {
			if _, err := r.storage.DeleteUnresolvedCalls(ctx, linkedIDs); err != nil {
				return resolved, remaining, fmt.Errorf("failed to clear resolved calls: %w", err)
			}
		}
		if len(pending) < resolveBatchSize {
			return resolved, remaining, nil
		}
	}
}

// findCallable looks up candidate symbols for a callee name. Qualified
// names like "w.Run" or "auth.Login" fall back to the bare final segment
// when the full name matches nothing: the qualifier is usually a variable
// or package alias the symbol table never sees.
func (r *Resolver) findCallable(ctx context.Context, projectID int64, calleeName string) ([]*storage.Symbol, error) {
	candidates, err := r.storage.FindSymbolsByName(ctx, projectID, calleeName)
	if err != nil {
		return nil, err
	}
	callable := filterCallable(candidates)

	if len(callable) == 0 {
		if idx := strings.LastIndex(calleeName, "."); idx >= 0 && idx < len(calleeName)-1 {
			candidates, err = r.storage.FindSymbolsByName(ctx, projectID, calleeName[idx+1:])
			if err != nil {
				return nil, err
			}
			callable = filterCallable(candidates)
		}
	}
	return callable, nil
}

// filterCallable keeps only symbols a call expression can actually target
func filterCallable(symbols []*storage.Symbol) []*storage.Symbol {
	callable := make([]*storage.Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Kind == "function" || sym.Kind == "method" {
			callable = append(callable, sym)
		}
	}
	return callable
}
