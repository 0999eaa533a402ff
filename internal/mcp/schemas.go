package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// pathProperty is the library root argument shared by every tool
func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the stub library root (a directory, or a single .lua file)",
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

// indexLibraryTool returns the tool definition for index_library
func indexLibraryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_library",
		Description: "Parse the LuaCATS annotations of a stub library and index its signatures",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Number of files parsed concurrently (default: configured workers)",
					"minimum":     1,
				},
				"include_hidden": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, descend into hidden directories",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// lookupSymbolTool returns the tool definition for lookup_symbol
func lookupSymbolTool() mcp.Tool {
	return mcp.Tool{
		Name:        "lookup_symbol",
		Description: "Get the signature of a fully qualified name, e.g. string.format or Buffer:write",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Fully qualified symbol name",
				},
			},
			Required: []string{"path", "name"},
		},
	}
}

// listSymbolsTool returns the tool definition for list_symbols
func listSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_symbols",
		Description: "List indexed signatures in declaration order, optionally filtered",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"prefix": map[string]interface{}{
					"type":        "string",
					"description": "Name prefix, e.g. 'string.'",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Stub file path relative to the library root",
				},
				"documented_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, skip signatures without any annotation",
					"default":     false,
				},
				"limit": limitProperty(100, 1000),
			},
			Required: []string{"path"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Search indexed signatures by name and documentation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (name prefix or keywords)",
				},
				"limit": limitProperty(10, 100),
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (name + keyword), name (prefix only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "name", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getDiagnosticsTool returns the tool definition for get_diagnostics
func getDiagnosticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_diagnostics",
		Description: "List the annotation problems found in the last index run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"min_severity": map[string]interface{}{
					"type":        "string",
					"description": "Least severe level to include",
					"enum":        []string{"error", "warning", "info", "hint"},
					"default":     "hint",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Stub file path relative to the library root",
				},
				"kinds": map[string]interface{}{
					"type":        "array",
					"description": "Filter by diagnostic kind, e.g. param_mismatch",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"limit": limitProperty(100, 1000),
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a stub library",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
			},
			Required: []string{"path"},
		},
	}
}
