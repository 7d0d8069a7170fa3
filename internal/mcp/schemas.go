package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// pathProperty is the shared "path" parameter carried by every tool
func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// symbolProperty is the shared "symbol" parameter of the call graph tools
func symbolProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Function or method name, optionally qualified (e.g. 'ParseFile' or 'Conn.Close')",
	}
}

func limitProperty(defaultValue, maximum int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return",
		"default":     defaultValue,
		"minimum":     1,
		"maximum":     maximum,
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a Go codebase to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to Go project root (must contain go.mod or .go files)"),
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index *_test.go files",
					"default":     true,
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ directory",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed Go codebase with natural language or keyword queries. Call graph questions ('who calls X', 'what does X call') are answered from the call graph directly.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to indexed Go project"),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": limitProperty(10, 100),
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"symbol_types": map[string]interface{}{
							"type":        "array",
							"description": "Filter by symbol kind (function, method, struct, interface, type)",
							"items": map[string]interface{}{
								"type": "string",
								"enum": []string{"function", "method", "struct", "interface", "type", "const", "var"},
							},
						},
						"file_pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern for file paths (e.g., 'internal/**')",
						},
						"packages": map[string]interface{}{
							"type":        "array",
							"description": "Filter by package names",
							"items": map[string]interface{}{
								"type": "string",
							},
						},
						"min_relevance": map[string]interface{}{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getSymbolsTool returns the tool definition for get_symbols
func getSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_symbols",
		Description: "List symbols declared in a file, or look up symbols by name across the project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to indexed Go project"),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the project root; lists that file's symbols",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to look up project-wide (exact or qualified)",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict file listings to one symbol kind",
					"enum":        []string{"function", "method", "struct", "interface", "type", "const", "var"},
				},
			},
			Required: []string{"path"},
		},
	}
}

// getCallersTool returns the tool definition for get_callers
func getCallersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_callers",
		Description: "List the functions that call a given symbol, most frequent callers first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":   pathProperty("Absolute path to indexed Go project"),
				"symbol": symbolProperty(),
				"limit":  limitProperty(50, 200),
			},
			Required: []string{"path", "symbol"},
		},
	}
}

// getCalleesTool returns the tool definition for get_callees
func getCalleesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_callees",
		Description: "List the functions a given symbol calls, ordered by file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":   pathProperty("Absolute path to indexed Go project"),
				"symbol": symbolProperty(),
				"limit":  limitProperty(50, 200),
			},
			Required: []string{"path", "symbol"},
		},
	}
}

// getCallGraphTool returns the tool definition for get_call_graph
func getCallGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_call_graph",
		Description: "Show the call neighborhood of a function: callers, callees, unresolved calls, transitive calls, and an impact score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":   pathProperty("Absolute path to indexed Go project"),
				"symbol": symbolProperty(),
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "How many callee levels to follow (1-5)",
					"default":     2,
					"minimum":     1,
					"maximum":     5,
				},
			},
			Required: []string{"path", "symbol"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a Go project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to Go project"),
			},
			Required: []string{"path"},
		},
	}
}
