package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Call graph operations.
//
// call_edges and unresolved_calls deliberately carry no foreign keys on
// symbol ids: re-indexing a file replaces its symbols and may orphan edges
// pointing at the old rows. Read queries exclude orphans by joining through
// symbols, and PruneOrphanCallEdges reclaims them lazily.

func (s *SQLiteStorage) upsertCallEdgeWithQuerier(ctx context.Context, q querier, edge *CallEdge) error {
	// Re-recording the same (caller, callee, line) bumps the usage counter
	// instead of inserting a duplicate edge.
	query := `
		INSERT INTO call_edges (caller_id, callee_id, callee_name, call_type, call_line, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(caller_id, callee_id, call_line) DO UPDATE SET
			usage_count = usage_count + 1,
			callee_name = excluded.callee_name,
			call_type = excluded.call_type
		RETURNING id, usage_count
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		edge.CallerID, edge.CalleeID, edge.CalleeName, edge.CallType,
		edge.CallLine, now).Scan(&edge.ID, &edge.UsageCount)
	if err != nil {
		return fmt.Errorf("failed to upsert call edge: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertCallEdge(ctx context.Context, edge *CallEdge) error {
	return s.upsertCallEdgeWithQuerier(ctx, s.querier(), edge)
}

func (s *SQLiteStorage) insertUnresolvedCallWithQuerier(ctx context.Context, q querier, call *UnresolvedCall) error {
	query := `
		INSERT INTO unresolved_calls (caller_id, callee_name, call_type, call_line, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(caller_id, callee_name, call_line) DO NOTHING
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		call.CallerID, call.CalleeName, call.CallType, call.CallLine, now)
	if err != nil {
		return fmt.Errorf("failed to insert unresolved call: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil && id != 0 {
		call.ID = id
	}
	return nil
}

func (s *SQLiteStorage) InsertUnresolvedCall(ctx context.Context, call *UnresolvedCall) error {
	return s.insertUnresolvedCallWithQuerier(ctx, s.querier(), call)
}

const unresolvedColumns = `uc.id, uc.caller_id, uc.callee_name, uc.call_type, uc.call_line, uc.created_at`

func collectUnresolved(ctx context.Context, q querier, query string, args ...interface{}) ([]*UnresolvedCall, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	calls := make([]*UnresolvedCall, 0)
	for rows.Next() {
		var c UnresolvedCall
		err := rows.Scan(&c.ID, &c.CallerID, &c.CalleeName, &c.CallType, &c.CallLine, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		calls = append(calls, &c)
	}
	return calls, rows.Err()
}

// listUnresolvedCallsWithQuerier pages through pending calls in id order.
// afterID is a keyset cursor: pass 0 for the first page, then the last
// returned ID, so a scan sees every row even when earlier pages stay
// pending.
func (s *SQLiteStorage) listUnresolvedCallsWithQuerier(ctx context.Context, q querier, projectID int64, afterID int64, limit int) ([]*UnresolvedCall, error) {
	query := `
		SELECT ` + unresolvedColumns + `
		FROM unresolved_calls uc
		JOIN symbols s ON uc.caller_id = s.id
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND uc.id > ?
		ORDER BY uc.id
		LIMIT ?
	`
	return collectUnresolved(ctx, q, query, projectID, afterID, limit)
}

func (s *SQLiteStorage) ListUnresolvedCalls(ctx context.Context, projectID int64, afterID int64, limit int) ([]*UnresolvedCall, error) {
	return s.listUnresolvedCallsWithQuerier(ctx, s.querier(), projectID, afterID, limit)
}

func (s *SQLiteStorage) listUnresolvedByCallerWithQuerier(ctx context.Context, q querier, callerID int64) ([]*UnresolvedCall, error) {
	query := `
		SELECT ` + unresolvedColumns + `
		FROM unresolved_calls uc
		WHERE uc.caller_id = ?
		ORDER BY uc.call_line
	`
	return collectUnresolved(ctx, q, query, callerID)
}

func (s *SQLiteStorage) ListUnresolvedByCaller(ctx context.Context, callerID int64) ([]*UnresolvedCall, error) {
	return s.listUnresolvedByCallerWithQuerier(ctx, s.querier(), callerID)
}

func (s *SQLiteStorage) deleteUnresolvedCallsWithQuerier(ctx context.Context, q querier, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM unresolved_calls WHERE id IN (%s)`,
		strings.Join(placeholders, ","))
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unresolved calls: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLiteStorage) DeleteUnresolvedCalls(ctx context.Context, ids []int64) (int, error) {
	return s.deleteUnresolvedCallsWithQuerier(ctx, s.querier(), ids)
}

// deleteCallsByFileWithQuerier removes all outgoing calls recorded for a
// file's symbols, resolved and pending alike. Run before re-emitting a
// changed file so stale call sites don't survive the re-index.
func (s *SQLiteStorage) deleteCallsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM call_edges
		WHERE caller_id IN (SELECT id FROM symbols WHERE file_id = ?)
	`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete call edges: %w", err)
	}

	// Edges from other files into this one go back to pending rather than
	// being dropped. The file's symbols are about to be replaced with new
	// ids, and the callers will not be re-parsed; demoting keeps those
	// relationships recoverable by the next resolution pass.
	_, err = q.ExecContext(ctx, `
		INSERT INTO unresolved_calls (caller_id, callee_name, call_type, call_line, created_at)
		SELECT ce.caller_id, ce.callee_name, ce.call_type, ce.call_line, CURRENT_TIMESTAMP
		FROM call_edges ce
		WHERE ce.callee_id IN (SELECT id FROM symbols WHERE file_id = ?)
		  AND ce.caller_id NOT IN (SELECT id FROM symbols WHERE file_id = ?)
		  AND ce.callee_name != ''
		ON CONFLICT(caller_id, callee_name, call_line) DO NOTHING
	`, fileID, fileID)
	if err != nil {
		return fmt.Errorf("failed to demote inbound call edges: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		DELETE FROM call_edges
		WHERE callee_id IN (SELECT id FROM symbols WHERE file_id = ?)
	`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete inbound call edges: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		DELETE FROM unresolved_calls
		WHERE caller_id IN (SELECT id FROM symbols WHERE file_id = ?)
	`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete unresolved calls: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteCallsByFile(ctx context.Context, fileID int64) error {
	return s.deleteCallsByFileWithQuerier(ctx, s.querier(), fileID)
}

// getCallersWithQuerier returns the symbols that call the named function,
// most frequent callers first. Rows aggregate per caller: a function with
// several call sites to the target appears once, with UsageCount summing
// every site and CallLine holding the first one. The inner joins skip
// edges whose caller or callee row no longer exists.
func (s *SQLiteStorage) getCallersWithQuerier(ctx context.Context, q querier, projectID int64, calleeName string, limit int) ([]*CallSite, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("caller") + `,
		       f.file_path, ce.call_type, MIN(ce.call_line), SUM(ce.usage_count) AS total_usage
		FROM call_edges ce
		JOIN symbols callee ON ce.callee_id = callee.id
		JOIN symbols caller ON ce.caller_id = caller.id
		JOIN files f ON caller.file_id = f.id
		WHERE f.project_id = ?
		  AND (callee.name = ? OR callee.qualified_name = ? OR ce.callee_name = ?)
		GROUP BY caller.id
		ORDER BY total_usage DESC, f.file_path, caller.start_line
		LIMIT ?
	`
	return collectCallSites(ctx, q, query, projectID, calleeName, calleeName, calleeName, limit)
}

func (s *SQLiteStorage) GetCallers(ctx context.Context, projectID int64, calleeName string, limit int) ([]*CallSite, error) {
	return s.getCallersWithQuerier(ctx, s.querier(), projectID, calleeName, limit)
}

// getCalleesWithQuerier returns the symbols the named function calls,
// ordered by defining file path for stable output.
func (s *SQLiteStorage) getCalleesWithQuerier(ctx context.Context, q querier, projectID int64, callerName string, limit int) ([]*CallSite, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("callee") + `,
		       f.file_path, ce.call_type, ce.call_line, ce.usage_count
		FROM call_edges ce
		JOIN symbols caller ON ce.caller_id = caller.id
		JOIN symbols callee ON ce.callee_id = callee.id
		JOIN files f ON callee.file_id = f.id
		JOIN files cf ON caller.file_id = cf.id
		WHERE cf.project_id = ?
		  AND (caller.name = ? OR caller.qualified_name = ?)
		ORDER BY f.file_path, callee.start_line
		LIMIT ?
	`
	return collectCallSites(ctx, q, query, projectID, callerName, callerName, limit)
}

func (s *SQLiteStorage) GetCallees(ctx context.Context, projectID int64, callerName string, limit int) ([]*CallSite, error) {
	return s.getCalleesWithQuerier(ctx, s.querier(), projectID, callerName, limit)
}

func collectCallSites(ctx context.Context, q querier, query string, args ...interface{}) ([]*CallSite, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sites := make([]*CallSite, 0)
	for rows.Next() {
		var site CallSite
		symbol, err := scanSymbolInto(rows.Scan, &site)
		if err != nil {
			return nil, err
		}
		site.Symbol = symbol
		sites = append(sites, &site)
	}
	return sites, rows.Err()
}

// scanSymbolInto scans a symbol row plus the trailing call site columns
func scanSymbolInto(scan func(dest ...interface{}) error, site *CallSite) (*Symbol, error) {
	return scanSymbol(func(dest ...interface{}) error {
		dest = append(dest, &site.FilePath, &site.CallType, &site.CallLine, &site.UsageCount)
		return scan(dest...)
	})
}

const callEdgeColumns = `id, caller_id, callee_id, callee_name, call_type, call_line, usage_count, created_at`

func (s *SQLiteStorage) listCallEdgesWithQuerier(ctx context.Context, q querier, keyColumn string, id int64) ([]*CallEdge, error) {
	query := `SELECT ` + callEdgeColumns + ` FROM call_edges WHERE ` + keyColumn + ` = ? ORDER BY call_line`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*CallEdge, 0)
	for rows.Next() {
		var e CallEdge
		err := rows.Scan(&e.ID, &e.CallerID, &e.CalleeID, &e.CalleeName,
			&e.CallType, &e.CallLine, &e.UsageCount, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) ListCallEdgesByCaller(ctx context.Context, callerID int64) ([]*CallEdge, error) {
	return s.listCallEdgesWithQuerier(ctx, s.querier(), "caller_id", callerID)
}

func (s *SQLiteStorage) ListCallEdgesByCallee(ctx context.Context, calleeID int64) ([]*CallEdge, error) {
	return s.listCallEdgesWithQuerier(ctx, s.querier(), "callee_id", calleeID)
}

// pruneOrphanCallEdgesWithQuerier drops edges whose endpoints were deleted
// by a re-index. Safe to run at any time; callers run it opportunistically.
func (s *SQLiteStorage) pruneOrphanCallEdgesWithQuerier(ctx context.Context, q querier) (int64, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM call_edges
		WHERE caller_id NOT IN (SELECT id FROM symbols)
		   OR callee_id NOT IN (SELECT id FROM symbols)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune call edges: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	result, err = q.ExecContext(ctx, `
		DELETE FROM unresolved_calls
		WHERE caller_id NOT IN (SELECT id FROM symbols)
	`)
	if err != nil {
		return pruned, fmt.Errorf("failed to prune unresolved calls: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		pruned += n
	}
	return pruned, nil
}

func (s *SQLiteStorage) PruneOrphanCallEdges(ctx context.Context) (int64, error) {
	return s.pruneOrphanCallEdgesWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) callGraphStatsWithQuerier(ctx context.Context, q querier, projectID int64) (*GraphStats, error) {
	stats := &GraphStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*)
		  FROM call_edges ce
		  JOIN symbols s ON ce.caller_id = s.id
		  JOIN files f ON s.file_id = f.id
		  WHERE f.project_id = ?`, &stats.EdgeCount},
		{`SELECT COUNT(*)
		  FROM unresolved_calls uc
		  JOIN symbols s ON uc.caller_id = s.id
		  JOIN files f ON s.file_id = f.id
		  WHERE f.project_id = ?`, &stats.UnresolvedCount},
		{`SELECT COUNT(DISTINCT ce.caller_id)
		  FROM call_edges ce
		  JOIN symbols s ON ce.caller_id = s.id
		  JOIN files f ON s.file_id = f.id
		  WHERE f.project_id = ?`, &stats.CallerCount},
		{`SELECT COUNT(DISTINCT ce.callee_id)
		  FROM call_edges ce
		  JOIN symbols s ON ce.callee_id = s.id
		  JOIN files f ON s.file_id = f.id
		  WHERE f.project_id = ?`, &stats.CalleeCount},
	}
	for _, c := range queries {
		if err := q.QueryRowContext(ctx, c.query, projectID).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStorage) CallGraphStats(ctx context.Context, projectID int64) (*GraphStats, error) {
	return s.callGraphStatsWithQuerier(ctx, s.querier(), projectID)
}

// entryPointsWithQuerier finds callable symbols nothing in the project
// calls. These are likely entry points: main, handlers, exported API.
func (s *SQLiteStorage) entryPointsWithQuerier(ctx context.Context, q querier, projectID int64, limit int) ([]*Symbol, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("s") + `
		FROM symbols s
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ?
		  AND s.kind IN ('function', 'method')
		  AND s.id NOT IN (SELECT callee_id FROM call_edges)
		ORDER BY f.file_path, s.start_line
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectSymbols(rows)
}

func (s *SQLiteStorage) EntryPoints(ctx context.Context, projectID int64, limit int) ([]*Symbol, error) {
	return s.entryPointsWithQuerier(ctx, s.querier(), projectID, limit)
}

// leafFunctionsWithQuerier finds callable symbols that call nothing else
// recorded in the graph.
func (s *SQLiteStorage) leafFunctionsWithQuerier(ctx context.Context, q querier, projectID int64, limit int) ([]*Symbol, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("s") + `
		FROM symbols s
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ?
		  AND s.kind IN ('function', 'method')
		  AND s.id NOT IN (SELECT caller_id FROM call_edges)
		  AND s.id NOT IN (SELECT caller_id FROM unresolved_calls)
		ORDER BY f.file_path, s.start_line
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectSymbols(rows)
}

func (s *SQLiteStorage) LeafFunctions(ctx context.Context, projectID int64, limit int) ([]*Symbol, error) {
	return s.leafFunctionsWithQuerier(ctx, s.querier(), projectID, limit)
}
