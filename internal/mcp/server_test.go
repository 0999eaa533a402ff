package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/luacats-mcp/internal/config"
	"github.com/dshills/luacats-mcp/internal/indexer"
	"github.com/dshills/luacats-mcp/internal/storage"
)

const stringStub = `---@meta

---Returns a copy of s repeated n times.
---@param s string
---@param n integer
---@return string
function string.rep(s, n) end

---Returns the string s reversed.
---@param s string
---@return string
function string.reverse(s) end

---@param nam string
function string.broken(name) end
`

// ServerSuite runs tool handlers against an in-memory store
type ServerSuite struct {
	suite.Suite
	server *Server
	root   string
	ctx    context.Context
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)

	cfg := config.Default()
	cfg.Workers = 2
	s.server = NewServerWithStorage(store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()

	s.root = s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(s.root, "string.lua"), []byte(stringStub), 0644))
}

func (s *ServerSuite) TearDownTest() {
	_ = s.server.Close()
}

func request(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// decode unmarshals the JSON text of a tool result
func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func (s *ServerSuite) index() {
	result, err := s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path": s.root,
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(true, out["indexed"])
	s.Equal(true, out["complete"])
	s.Equal(float64(1), out["files_indexed"])
	s.Equal(float64(3), out["signatures_stored"])
}

func (s *ServerSuite) TestIndexLibrary() {
	s.index()

	// Second run skips the unchanged file
	result, err := s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path":    s.root,
		"workers": float64(1),
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(float64(0), out["files_indexed"])
	s.Equal(float64(1), out["files_skipped"])
}

// busyIndexer reports a run in progress the way a held IndexLock does
type busyIndexer struct{}

func (busyIndexer) IndexLibrary(context.Context, string, *indexer.Config) (*indexer.Statistics, error) {
	return nil, indexer.ErrIndexingInProgress
}

func (busyIndexer) Indexing() bool { return true }

func (s *ServerSuite) TestIndexLibrary_InProgress() {
	s.server.indexer = busyIndexer{}

	_, err := s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path": s.root,
	}))
	requireCode(s.T(), err, ErrorCodeIndexingInProgress)

	result, err := s.server.handleGetStatus(s.ctx, request("get_status", map[string]interface{}{
		"path": s.root,
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(true, out["in_progress"])
}

func (s *ServerSuite) TestIndexLibrary_InvalidPath() {
	_, err := s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)

	_, err = s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path": "relative/stubs",
	}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)

	empty := s.T().TempDir()
	_, err = s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path": empty,
	}))
	requireCode(s.T(), err, ErrorCodeLibraryNotFound)
}

func (s *ServerSuite) TestLookupSymbol() {
	_, err := s.server.handleLookupSymbol(s.ctx, request("lookup_symbol", map[string]interface{}{
		"path": s.root,
		"name": "string.rep",
	}))
	requireCode(s.T(), err, ErrorCodeNotIndexed)

	s.index()

	result, err := s.server.handleLookupSymbol(s.ctx, request("lookup_symbol", map[string]interface{}{
		"path": s.root,
		"name": "string.rep",
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal("string.rep", out["name"])
	s.Equal("function string.rep(s, n)", out["declaration"])
	s.Equal("fun(s: string, n: integer): string", out["type"])
	s.Equal("Returns a copy of s repeated n times.", out["description"])
	s.Equal("string.lua", out["file"])

	params, ok := out["params"].([]interface{})
	s.Require().True(ok)
	s.Len(params, 2)

	_, err = s.server.handleLookupSymbol(s.ctx, request("lookup_symbol", map[string]interface{}{
		"path": s.root,
		"name": "string.missing",
	}))
	requireCode(s.T(), err, ErrorCodeSymbolNotFound)

	_, err = s.server.handleLookupSymbol(s.ctx, request("lookup_symbol", map[string]interface{}{
		"path": s.root,
	}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)
}

func (s *ServerSuite) TestLookupSymbol_SingleFile() {
	file := filepath.Join(s.root, "string.lua")
	_, err := s.server.handleIndexLibrary(s.ctx, request("index_library", map[string]interface{}{
		"path": file,
	}))
	s.Require().NoError(err)

	result, err := s.server.handleLookupSymbol(s.ctx, request("lookup_symbol", map[string]interface{}{
		"path": file,
		"name": "string.reverse",
	}))
	s.Require().NoError(err)
	s.Equal("string.reverse", decode(s.T(), result)["name"])
}

func (s *ServerSuite) TestListSymbols() {
	s.index()

	result, err := s.server.handleListSymbols(s.ctx, request("list_symbols", map[string]interface{}{
		"path":   s.root,
		"prefix": "string.re",
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(float64(2), out["count"])

	symbols := out["symbols"].([]interface{})
	first := symbols[0].(map[string]interface{})
	s.Equal("string.rep", first["name"], "declaration order")

	_, err = s.server.handleListSymbols(s.ctx, request("list_symbols", map[string]interface{}{
		"path":  s.root,
		"limit": float64(0),
	}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)
}

func (s *ServerSuite) TestSearchSymbols() {
	s.index()

	result, err := s.server.handleSearchSymbols(s.ctx, request("search_symbols", map[string]interface{}{
		"path":  s.root,
		"query": "reversed",
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.GreaterOrEqual(out["total_results"], float64(1))

	results := out["results"].([]interface{})
	first := results[0].(map[string]interface{})
	s.Equal("string.reverse", first["name"])
	s.Equal("hybrid", out["search_mode"])

	_, err = s.server.handleSearchSymbols(s.ctx, request("search_symbols", map[string]interface{}{
		"path":  s.root,
		"query": "   ",
	}))
	requireCode(s.T(), err, ErrorCodeEmptyQuery)

	_, err = s.server.handleSearchSymbols(s.ctx, request("search_symbols", map[string]interface{}{
		"path":        s.root,
		"query":       "rep",
		"search_mode": "vector",
	}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)

	_, err = s.server.handleSearchSymbols(s.ctx, request("search_symbols", map[string]interface{}{
		"path":        s.root,
		"query":       "()",
		"search_mode": "keyword",
	}))
	requireCode(s.T(), err, ErrorCodeEmptyQuery)
}

func (s *ServerSuite) TestGetDiagnostics() {
	s.index()

	result, err := s.server.handleGetDiagnostics(s.ctx, request("get_diagnostics", map[string]interface{}{
		"path":  s.root,
		"kinds": []interface{}{"param_mismatch"},
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(float64(1), out["count"])

	diags := out["diagnostics"].([]interface{})
	d := diags[0].(map[string]interface{})
	s.Equal("param_mismatch", d["kind"])
	s.Equal("string.lua", d["file"])

	result, err = s.server.handleGetDiagnostics(s.ctx, request("get_diagnostics", map[string]interface{}{
		"path":         s.root,
		"min_severity": "error",
	}))
	s.Require().NoError(err)
	out = decode(s.T(), result)
	s.Equal(float64(0), out["count"])

	_, err = s.server.handleGetDiagnostics(s.ctx, request("get_diagnostics", map[string]interface{}{
		"path":         s.root,
		"min_severity": "fatal",
	}))
	requireCode(s.T(), err, ErrorCodeInvalidParams)
}

func (s *ServerSuite) TestGetStatus() {
	result, err := s.server.handleGetStatus(s.ctx, request("get_status", map[string]interface{}{
		"path": s.root,
	}))
	s.Require().NoError(err)
	out := decode(s.T(), result)
	s.Equal(false, out["indexed"])

	s.index()

	result, err = s.server.handleGetStatus(s.ctx, request("get_status", map[string]interface{}{
		"path": s.root,
	}))
	s.Require().NoError(err)
	out = decode(s.T(), result)
	s.Equal(true, out["indexed"])
	s.Equal(false, out["in_progress"])

	stats := out["statistics"].(map[string]interface{})
	s.Equal(float64(1), stats["files_count"])
	s.Equal(float64(3), stats["signatures_count"])

	health := out["health"].(map[string]interface{})
	s.Equal(true, health["database_accessible"])
}

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	stub := filepath.Join(root, "a.lua")
	require.NoError(t, os.WriteFile(stub, []byte("function a() end\n"), 0644))
	notes := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0644))

	exts := []string{".lua"}
	assert.NoError(t, validatePath(root, exts))
	assert.NoError(t, validatePath(stub, exts))
	assert.ErrorIs(t, validatePath("", exts), ErrPathRequired)
	assert.ErrorIs(t, validatePath("a.lua", exts), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(root, "missing"), exts), ErrPathNotFound)
	assert.ErrorIs(t, validatePath(notes, exts), ErrNoStubFiles)
	assert.ErrorIs(t, validatePath(t.TempDir(), exts), ErrNoStubFiles)
}

func TestNewServer(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "index.db")

	server, err := NewServer(cfg, nil)
	require.NoError(t, err)
	defer server.Close()

	assert.NotNil(t, server.mcp, "MCP server should be initialized")
	assert.NotNil(t, server.storage, "Storage should be initialized")
	assert.NotNil(t, server.indexer, "Indexer should be initialized")
	assert.NotNil(t, server.searcher, "Searcher should be initialized")
	assert.FileExists(t, cfg.DBPath)
}

func TestGetStringSlice(t *testing.T) {
	args := map[string]interface{}{
		"mixed": []interface{}{"a", 1.0, "b"},
		"typed": []string{"c"},
		"bad":   "d",
	}
	assert.Equal(t, []string{"a", "b"}, getStringSlice(args, "mixed"))
	assert.Equal(t, []string{"c"}, getStringSlice(args, "typed"))
	assert.Nil(t, getStringSlice(args, "bad"))
	assert.Nil(t, getStringSlice(args, "missing"))
}
