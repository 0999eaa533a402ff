// Package mcp implements the Model Context Protocol (MCP) server for luacats.
//
// The MCP server exposes the indexed signatures of a LuaCATS stub library
// to AI coding assistants:
//   - index_library: Parse and index a stub library
//   - lookup_symbol: Get one signature by fully qualified name
//   - list_symbols: List signatures by prefix or file
//   - search_symbols: Search signatures by name and documentation
//   - get_diagnostics: Annotation problems found while indexing
//   - get_status: Indexing status and statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	luacats serve
//
// # Tool: index_library
//
//	Request:
//	{
//	  "name": "index_library",
//	  "arguments": {"path": "/path/to/stubs", "workers": 4}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "complete": true,
//	  "files_indexed": 42,
//	  "files_skipped": 0,
//	  "signatures_stored": 731,
//	  "duration_ms": 180
//	}
//
// A second call only rewrites changed files. While a run is in progress
// another call fails with code -32002.
//
// # Tool: lookup_symbol
//
//	Request:
//	{
//	  "name": "lookup_symbol",
//	  "arguments": {"path": "/path/to/stubs", "name": "string.rep"}
//	}
//
//	Response:
//	{
//	  "name": "string.rep",
//	  "declaration": "function string.rep(s, n)",
//	  "type": "fun(s: string, n: integer): string",
//	  "params": [{"name": "s", "type": "string"}, ...],
//	  ...
//	}
//
// # Tool: search_symbols
//
// search_mode is one of hybrid (default), name or keyword. Scores are
// normalized to [0, 1].
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  path holds no stub files
//	-32002  indexing already in progress
//	-32003  library not indexed
//	-32004  empty query
//	-32005  symbol not found
package mcp
