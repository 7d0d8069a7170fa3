package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/symdex/symdex-mcp/internal/graph"
	"github.com/symdex/symdex-mcp/internal/searcher"
	"github.com/symdex/symdex-mcp/internal/storage"
)

// answerCrossRef serves a routed "who calls X" / "what does X call"
// question straight from the call graph
func (s *Server) answerCrossRef(ctx context.Context, projectID int64, xref *searcher.CrossRefQuery, limit int) (*mcp.CallToolResult, error) {
	var sites []*storage.CallSite
	var err error

	switch xref.Direction {
	case searcher.CrossRefCallers:
		sites, err = s.graph.Callers(ctx, projectID, xref.Symbol, limit)
	case searcher.CrossRefCallees:
		sites, err = s.graph.Callees(ctx, projectID, xref.Symbol, limit)
	}
	if err != nil {
		return nil, graphLookupError(xref.Symbol, err)
	}

	payload := map[string]interface{}{
		"cross_reference": true,
		"direction":       string(xref.Direction),
		"symbol":          xref.Symbol,
		"count":           len(sites),
		"sites":           formatCallSites(sites),
	}
	if len(sites) == 0 {
		payload["message"] = "Symbol is indexed but has no recorded calls in this direction."
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// handleGetSymbols handles the get_symbols tool invocation
func (s *Server) handleGetSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	project, mcpErr := s.lookupProject(ctx, path)
	if mcpErr != nil {
		return nil, mcpErr
	}

	filePath, _ := args["file"].(string)
	name, _ := args["name"].(string)
	kind, _ := args["kind"].(string)

	switch {
	case filePath != "":
		file, err := s.storage.GetFile(ctx, project.ID, filePath)
		if err == storage.ErrNotFound {
			return nil, newMCPError(ErrorCodeInvalidParams, "file not indexed", map[string]interface{}{
				"param": "file",
				"value": filePath,
			})
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to look up file", map[string]interface{}{
				"error": err.Error(),
			})
		}

		symbols, err := s.storage.ListSymbolsByFile(ctx, file.ID, kind)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list symbols", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"file":    filePath,
			"count":   len(symbols),
			"symbols": formatSymbols(symbols),
		})), nil

	case name != "":
		symbols, err := s.storage.FindSymbolsByName(ctx, project.ID, name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to find symbols", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"name":    name,
			"count":   len(symbols),
			"symbols": formatSymbols(symbols),
		})), nil

	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "either file or name is required", map[string]interface{}{
			"reason": "nothing to look up",
		})
	}
}

// handleGetCallers handles the get_callers tool invocation
func (s *Server) handleGetCallers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleCallQuery(ctx, request, searcher.CrossRefCallers)
}

// handleGetCallees handles the get_callees tool invocation
func (s *Server) handleGetCallees(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleCallQuery(ctx, request, searcher.CrossRefCallees)
}

func (s *Server) handleCallQuery(ctx context.Context, request mcp.CallToolRequest, direction searcher.CrossRefDirection) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	symbol, ok := args["symbol"].(string)
	if !ok || symbol == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "symbol parameter is required", map[string]interface{}{
			"param":  "symbol",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 50)

	project, mcpErr := s.lookupProject(ctx, path)
	if mcpErr != nil {
		return nil, mcpErr
	}

	return s.answerCrossRef(ctx, project.ID, &searcher.CrossRefQuery{
		Direction: direction,
		Symbol:    symbol,
	}, limit)
}

// handleGetCallGraph handles the get_call_graph tool invocation
func (s *Server) handleGetCallGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	symbol, ok := args["symbol"].(string)
	if !ok || symbol == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "symbol parameter is required", map[string]interface{}{
			"param":  "symbol",
			"reason": "missing or empty",
		})
	}

	depth := getIntDefault(args, "depth", 2)

	project, mcpErr := s.lookupProject(ctx, path)
	if mcpErr != nil {
		return nil, mcpErr
	}

	callGraph, err := s.graph.Neighborhood(ctx, project.ID, symbol, depth)
	if err != nil {
		return nil, graphLookupError(symbol, err)
	}

	impact, err := s.graph.ImpactScore(ctx, project.ID, symbol)
	if err != nil {
		return nil, graphLookupError(symbol, err)
	}

	deeper := make([]map[string]interface{}, len(callGraph.DeeperCalls))
	for i, dc := range callGraph.DeeperCalls {
		deeper[i] = map[string]interface{}{
			"via":   dc.Via,
			"depth": dc.Depth,
			"site":  formatCallSite(dc.Site),
		}
	}

	unresolved := make([]map[string]interface{}, len(callGraph.UnresolvedCalls))
	for i, uc := range callGraph.UnresolvedCalls {
		unresolved[i] = map[string]interface{}{
			"callee_name": uc.CalleeName,
			"call_type":   uc.CallType,
			"call_line":   uc.CallLine,
		}
	}

	payload := map[string]interface{}{
		"symbol":           symbol,
		"impact_score":     impact,
		"definitions":      formatSymbols(callGraph.Root),
		"called_by":        formatCallSites(callGraph.CalledBy),
		"calls":            formatCallSites(callGraph.Calls),
		"unresolved_calls": unresolved,
		"deeper_calls":     deeper,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// graphLookupError maps graph errors to MCP error codes. A symbol the
// index has never seen is a distinct condition from internal failure.
func graphLookupError(symbol string, err error) error {
	if errors.Is(err, graph.ErrNotIndexed) {
		return newMCPError(ErrorCodeSymbolNotFound, "symbol not found in index", map[string]interface{}{
			"symbol": symbol,
			"hint":   "The symbol may be external, misspelled, or the project may need reindexing.",
		})
	}
	return newMCPError(ErrorCodeInternalError, "call graph lookup failed", map[string]interface{}{
		"symbol": symbol,
		"error":  err.Error(),
	})
}

// formatSymbols shapes symbol rows for the wire
func formatSymbols(symbols []*storage.Symbol) []map[string]interface{} {
	out := make([]map[string]interface{}, len(symbols))
	for i, sym := range symbols {
		entry := map[string]interface{}{
			"name":       sym.Name,
			"kind":       sym.Kind,
			"package":    sym.PackageName,
			"signature":  sym.Signature,
			"start_line": sym.StartLine,
			"end_line":   sym.EndLine,
		}
		if sym.QualifiedName != "" && sym.QualifiedName != sym.Name {
			entry["qualified_name"] = sym.QualifiedName
		}
		if sym.DocComment != "" {
			entry["doc_comment"] = sym.DocComment
		}
		out[i] = entry
	}
	return out
}

func formatCallSites(sites []*storage.CallSite) []map[string]interface{} {
	out := make([]map[string]interface{}, len(sites))
	for i, site := range sites {
		out[i] = formatCallSite(site)
	}
	return out
}

func formatCallSite(site *storage.CallSite) map[string]interface{} {
	entry := map[string]interface{}{
		"name":        site.Symbol.Name,
		"kind":        site.Symbol.Kind,
		"file":        site.FilePath,
		"line":        site.Symbol.StartLine,
		"call_line":   site.CallLine,
		"call_type":   site.CallType,
		"usage_count": site.UsageCount,
	}
	if site.Symbol.QualifiedName != "" && site.Symbol.QualifiedName != site.Symbol.Name {
		entry["qualified_name"] = site.Symbol.QualifiedName
	}
	return entry
}
