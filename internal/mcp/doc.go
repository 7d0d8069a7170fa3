// Package mcp implements the Model Context Protocol (MCP) server for Symdex.
//
// The MCP server exposes seven tools to AI coding assistants:
//   - index_codebase: Index a Go project for search and call graph queries
//   - search_code: Hybrid search with natural language or keyword queries
//   - get_symbols: List symbols in a file or look them up by name
//   - get_callers: Who calls a given function
//   - get_callees: What a given function calls
//   - get_call_graph: Full call neighborhood with an impact score
//   - get_status: Check indexing status and statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	symdex serve
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout.
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "include_tests": true,
//	    "include_vendor": false
//	  }
//	}
//
//	Response (excerpt):
//	{
//	  "indexed": true,
//	  "files_indexed": 247,
//	  "symbols_extracted": 8432,
//	  "calls_resolved": 19204,
//	  "calls_unresolved": 3120,
//	  "duration_ms": 35200
//	}
//
// Unresolved calls are normal: calls into external dependencies have no
// local definition to link to.
//
// # Tool: search_code
//
// Queries phrased as call graph questions ("who calls ParseFile",
// "what does Run call") are answered from the call graph directly and
// marked with "cross_reference": true. Everything else goes through the
// hybrid pipeline; when the semantic source is unavailable the response
// carries "degraded": true and names the skipped sources rather than
// failing.
//
// # Error Codes
//
// Tools return JSON-RPC errors with these codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  path does not contain a Go project
//	-32002  indexing already in progress
//	-32003  project not indexed
//	-32004  empty query
//	-32005  symbol not found in index
//
// A symbol the index has never seen (-32005) is distinct from an indexed
// symbol with no recorded calls, which returns an empty result set.
package mcp
