package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/luacats-mcp/internal/config"
	"github.com/dshills/luacats-mcp/internal/indexer"
	"github.com/dshills/luacats-mcp/internal/searcher"
	"github.com/dshills/luacats-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "luacats-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// libraryIndexer is the part of indexer.Indexer the tools use
type libraryIndexer interface {
	IndexLibrary(ctx context.Context, rootPath string, config *indexer.Config) (*indexer.Statistics, error)
	Indexing() bool
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  libraryIndexer
	searcher *searcher.Searcher
	config   *config.Config
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance backed by the database at
// cfg.DBPath
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	dbPath, err := cfg.ResolvedDBPath()
	if err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return NewServerWithStorage(store, cfg, logger), nil
}

// NewServerWithStorage creates a server over an open store. The server
// closes the store when Serve returns.
func NewServerWithStorage(store storage.Storage, cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		indexer:  indexer.New(store, logger),
		searcher: searcher.NewSearcher(store),
		config:   cfg,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// Close releases the store without serving
func (s *Server) Close() error {
	return s.storage.Close()
}

// indexerConfig returns a fresh indexer config from the server settings
func (s *Server) indexerConfig() *indexer.Config {
	return &indexer.Config{
		Workers:       s.config.Workers,
		Timeout:       s.config.Timeout,
		Extensions:    s.config.Extensions,
		IncludeHidden: s.config.IncludeHidden,
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexLibraryTool(), s.handleIndexLibrary)
	s.mcp.AddTool(lookupSymbolTool(), s.handleLookupSymbol)
	s.mcp.AddTool(listSymbolsTool(), s.handleListSymbols)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(getDiagnosticsTool(), s.handleGetDiagnostics)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
