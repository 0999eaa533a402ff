package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/luacats-mcp/internal/indexer"
	"github.com/dshills/luacats-mcp/internal/library"
	"github.com/dshills/luacats-mcp/internal/searcher"
	"github.com/dshills/luacats-mcp/internal/storage"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeLibraryNotFound    = -32001 // Specified path does not contain stub files
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Library not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeSymbolNotFound     = -32005 // No signature with the requested name
)

// handleIndexLibrary handles the index_library tool invocation
func (s *Server) handleIndexLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	config := s.indexerConfig()
	if workers := getIntDefault(args, "workers", 0); workers > 0 {
		config.Workers = workers
	}
	config.IncludeHidden = getBoolDefault(args, "include_hidden", config.IncludeHidden)

	s.logger.Debug("tool call", "tool", "index_library", "path", path)
	stats, err := s.indexer.IndexLibrary(ctx, path, config)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Stored signatures changed under any cached query
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":           true,
		"complete":          stats.Complete,
		"scan_id":           stats.ScanID,
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"files_removed":     stats.FilesRemoved,
		"signatures_stored": stats.SignaturesStored,
		"aliases_stored":    stats.AliasesStored,
		"diagnostics":       stats.Diagnostics,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleLookupSymbol handles the lookup_symbol tool invocation
func (s *Server) handleLookupSymbol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	name, ok := args["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	lib, err := s.indexedLibrary(ctx, path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool call", "tool", "lookup_symbol", "path", path, "name", name)
	sig, err := s.storage.GetSignature(ctx, lib.ID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeSymbolNotFound, "symbol not found", map[string]interface{}{
			"name": name,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to look up symbol", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(signatureJSON(sig))), nil
}

// handleListSymbols handles the list_symbols tool invocation
func (s *Server) handleListSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", 100)
	if limit < 1 || limit > 1000 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 1000", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	filters := &storage.SignatureFilters{
		FilePath: filepath.ToSlash(getStringDefault(args, "file", "")),
		Prefix:   getStringDefault(args, "prefix", ""),
		Limit:    limit,
	}
	if getBoolDefault(args, "documented_only", false) {
		documented := true
		filters.Documented = &documented
	}

	lib, err := s.indexedLibrary(ctx, path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool call", "tool", "list_symbols", "path", path, "prefix", filters.Prefix)
	sigs, err := s.storage.ListSignatures(ctx, lib.ID, filters)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list symbols", map[string]interface{}{
			"error": err.Error(),
		})
	}

	symbols := make([]map[string]interface{}, 0, len(sigs))
	for _, sig := range sigs {
		symbols = append(symbols, map[string]interface{}{
			"name":      sig.Name,
			"type":      sig.TypeView,
			"file":      sig.FilePath,
			"line":      sig.Line,
			"is_method": sig.IsMethod,
		})
	}

	response := map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	searchMode := getStringDefault(args, "search_mode", "hybrid")
	if searchMode != "hybrid" && searchMode != "name" && searchMode != "keyword" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "name", "keyword"},
		})
	}

	lib, err := s.indexedLibrary(ctx, path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool call", "tool", "search_symbols", "path", path, "query", query, "mode", searchMode)
	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Mode:      searcher.SearchMode(searchMode),
		LibraryID: lib.ID,
		UseCache:  true,
	})
	if errors.Is(err, searcher.ErrNoSearchTerms) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query has no searchable terms", map[string]interface{}{
			"param": "query",
			"value": query,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":            r.Rank,
			"relevance_score": r.RelevanceScore,
			"name":            r.Name,
			"declaration":     r.View,
			"type":            r.TypeView,
			"description":     r.Description,
		}
		if r.File != nil {
			entry["file"] = r.File.Path
			entry["line"] = r.File.Line
		}
		results = append(results, entry)
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": resp.TotalResults,
		"search_mode":   string(resp.SearchMode),
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDiagnostics handles the get_diagnostics tool invocation
func (s *Server) handleGetDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	minSeverity, err := types.ParseSeverity(getStringDefault(args, "min_severity", "hint"))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid min_severity", map[string]interface{}{
			"param":   "min_severity",
			"reason":  err.Error(),
			"allowed": []string{"error", "warning", "info", "hint"},
		})
	}

	limit := getIntDefault(args, "limit", 100)
	if limit < 1 || limit > 1000 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 1000", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	filters := &storage.DiagnosticFilters{
		FilePath:    filepath.ToSlash(getStringDefault(args, "file", "")),
		MinSeverity: minSeverity,
		Kinds:       getStringSlice(args, "kinds"),
		Limit:       limit,
	}

	lib, err := s.indexedLibrary(ctx, path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool call", "tool", "get_diagnostics", "path", path)
	diags, err := s.storage.ListDiagnostics(ctx, lib.ID, filters)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list diagnostics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries := make([]map[string]interface{}, 0, len(diags))
	for _, d := range diags {
		entry := map[string]interface{}{
			"severity": d.Severity,
			"kind":     d.Kind,
			"message":  d.Message,
			"file":     d.FilePath,
			"line":     d.Line,
		}
		if d.RelatedPath != "" {
			entry["related"] = fmt.Sprintf("%s:%d", d.RelatedPath, d.RelatedLine)
		}
		entries = append(entries, entry)
	}

	response := map[string]interface{}{
		"diagnostics": entries,
		"count":       len(entries),
		"complete":    lib.Complete,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := s.requirePath(request)
	if err != nil {
		return nil, err
	}

	// Try to get library
	lib, err := s.storedLibrary(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed":     false,
			"path":        path,
			"in_progress": s.indexer.Indexing(),
			"message":     "Library not indexed. Use index_library tool to index this library.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get library status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, lib.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     true,
		"in_progress": s.indexer.Indexing(),
		"library": map[string]interface{}{
			"path":            lib.RootPath,
			"scan_id":         lib.ScanID,
			"complete":        lib.Complete,
			"index_version":   lib.IndexVersion,
			"last_indexed_at": lib.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"files_count":        status.FilesCount,
			"failed_files_count": status.FailedFilesCount,
			"signatures_count":   status.SignaturesCount,
			"aliases_count":      status.AliasesCount,
			"diagnostics_count":  status.DiagnosticsCount,
			"index_size_mb":      fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// requirePath extracts the arguments and the validated, cleaned path
func (s *Server) requirePath(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path, s.config.Extensions); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoStubFiles) {
			code = ErrorCodeLibraryNotFound
		}
		return nil, "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	return args, filepath.Clean(path), nil
}

// indexedLibrary returns the stored library at path
func (s *Server) indexedLibrary(ctx context.Context, path string) (*storage.Library, error) {
	lib, err := s.storedLibrary(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "library not indexed", map[string]interface{}{
			"path": path,
			"hint": "use index_library first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get library", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return lib, nil
}

// storedLibrary looks up the library a scan of path would have stored
func (s *Server) storedLibrary(ctx context.Context, path string) (*storage.Library, error) {
	root, err := library.RootOf(path)
	if err != nil {
		return nil, err
	}
	return s.storage.GetLibrary(ctx, root)
}

// signatureJSON renders a stored signature with its annotation details
func signatureJSON(sig *storage.Signature) map[string]interface{} {
	params := make([]map[string]interface{}, 0, len(sig.Params))
	for _, p := range sig.Params {
		params = append(params, map[string]interface{}{
			"name":        p.Name,
			"type":        p.Type,
			"description": p.Description,
			"optional":    p.Optional,
		})
	}
	returns := make([]map[string]interface{}, 0, len(sig.Returns))
	for _, r := range sig.Returns {
		returns = append(returns, map[string]interface{}{
			"name":        r.Name,
			"type":        r.Type,
			"description": r.Description,
		})
	}
	generics := make([]map[string]interface{}, 0, len(sig.Generics))
	for _, g := range sig.Generics {
		generics = append(generics, map[string]interface{}{
			"name":       g.Name,
			"constraint": g.Constraint,
		})
	}

	return map[string]interface{}{
		"name":        sig.Name,
		"declaration": sig.View,
		"type":        sig.TypeView,
		"description": sig.Description,
		"file":        sig.FilePath,
		"line":        sig.Line,
		"documented":  sig.Documented,
		"is_method":   sig.IsMethod,
		"deprecated":  sig.Deprecated,
		"nodiscard":   sig.NoDiscard,
		"async":       sig.Async,
		"params":      params,
		"returns":     returns,
		"generics":    generics,
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory holding
// at least one stub file, or a single stub file
func validatePath(path string, extensions []string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		if !hasExtension(path, extensions) {
			return ErrNoStubFiles
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	errFound := errors.New("found")
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && hasExtension(p, extensions) {
			return errFound
		}
		return nil
	})
	if !errors.Is(err, errFound) {
		return ErrNoStubFiles
	}

	return nil
}

func hasExtension(path string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNoStubFiles     = errors.New("path does not contain stub files")
)
