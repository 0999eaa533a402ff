package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dshills/luacats-mcp/internal/library"
	"github.com/dshills/luacats-mcp/internal/storage"
	"github.com/dshills/luacats-mcp/internal/symtab"
)

// ErrIndexingInProgress is returned when another index run holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Indexer coordinates the indexing pipeline: scan -> diff -> store
type Indexer struct {
	storage storage.Storage
	logger  *slog.Logger
	lock    IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers       int           // Number of concurrent parsers (default: runtime.NumCPU())
	BatchSize     int           // Number of files to commit per transaction (default: 20)
	Timeout       time.Duration // Scan wall time cap (default: none)
	Extensions    []string      // Stub file extensions (default: .lua)
	IncludeHidden bool          // Whether to index hidden directories (default: false)
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	ScanID           string
	FilesIndexed     int
	FilesSkipped     int
	FilesFailed      int
	FilesRemoved     int
	SignaturesStored int
	AliasesStored    int
	Diagnostics      int
	Complete         bool
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store storage.Storage, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		storage: store,
		logger:  logger,
	}
}

// Indexing reports whether an index run is in progress
func (idx *Indexer) Indexing() bool {
	return idx.lock.Held()
}

// IndexLibrary scans the stub files under rootPath and persists the
// result. Files whose content and definitions are unchanged since the last
// run are skipped; files no longer on disk are removed. An abandoned scan
// stores what was parsed and leaves the rows of abandoned files untouched.
func (idx *Indexer) IndexLibrary(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}

	startTime := time.Now()

	lib, err := library.Scan(ctx, rootPath, library.Options{
		Workers:       config.Workers,
		Timeout:       config.Timeout,
		Extensions:    config.Extensions,
		IncludeHidden: config.IncludeHidden,
		Logger:        idx.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	stats := &Statistics{
		ScanID:        lib.ID.String(),
		Complete:      lib.Complete,
		ErrorMessages: make([]string, 0),
	}
	for _, fe := range lib.Errors() {
		stats.ErrorMessages = append(stats.ErrorMessages, fe.Error())
	}

	stored, err := idx.getOrCreateLibrary(ctx, lib.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create library: %w", err)
	}

	existing, err := idx.storage.ListFiles(ctx, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored files: %w", err)
	}
	byPath := make(map[string]*storage.File, len(existing))
	for _, f := range existing {
		byPath[f.FilePath] = f
	}

	changed := make([]*library.File, 0)
	for _, f := range lib.Files() {
		if f.Abandoned {
			delete(byPath, f.Path)
			continue
		}
		if f.Err != nil {
			stats.FilesFailed++
		}
		prev, ok := byPath[f.Path]
		delete(byPath, f.Path)
		if ok && !fileChanged(prev, f, lib.Table()) {
			stats.FilesSkipped++
			continue
		}
		changed = append(changed, f)
	}

	for start := 0; start < len(changed); start += config.BatchSize {
		end := min(start+config.BatchSize, len(changed))
		if err := idx.indexBatch(ctx, stored, lib, changed[start:end], stats); err != nil {
			return nil, fmt.Errorf("failed to index files: %w", err)
		}
	}

	// whatever is left in byPath is no longer on disk
	if err := idx.finish(ctx, stored, lib, byPath, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("library indexed",
		"scan_id", stats.ScanID,
		"root", lib.Root,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"removed", stats.FilesRemoved,
		"signatures", stats.SignaturesStored,
		"duration", stats.Duration)
	return stats, nil
}

// getOrCreateLibrary retrieves an existing library or creates a new one
func (idx *Indexer) getOrCreateLibrary(ctx context.Context, rootPath string) (*storage.Library, error) {
	lib, err := idx.storage.GetLibrary(ctx, rootPath)
	if err == nil {
		return lib, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	lib = &storage.Library{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if err := idx.storage.CreateLibrary(ctx, lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// indexBatch rewrites the rows of a batch of files in one transaction
func (idx *Indexer) indexBatch(ctx context.Context, stored *storage.Library, lib *library.Library,
	files []*library.File, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := lib.Table()
	for _, f := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row := &storage.File{
			LibraryID:       stored.ID,
			FilePath:        f.Path,
			ContentHash:     f.Hash,
			DefinitionsHash: definitionsHash(table, f.Path),
			IsMeta:          f.IsMeta,
			MetaName:        f.MetaName,
			ModTime:         f.ModTime,
			SizeBytes:       f.SizeBytes,
		}
		if f.Err != nil {
			msg := f.Err.Error()
			row.ParseError = &msg
		}
		if err := tx.UpsertFile(ctx, row); err != nil {
			return err
		}
		if err := tx.DeleteSignaturesByFile(ctx, row.ID); err != nil {
			return fmt.Errorf("failed to clear signatures of %s: %w", f.Path, err)
		}
		if err := tx.DeleteAliasesByFile(ctx, row.ID); err != nil {
			return fmt.Errorf("failed to clear aliases of %s: %w", f.Path, err)
		}

		for sig := range table.InFile(f.Path) {
			if err := tx.InsertSignature(ctx, storage.FromSignature(sig, row.ID)); err != nil {
				return err
			}
			stats.SignaturesStored++
		}
		for alias := range table.Aliases() {
			if alias.Location.File != f.Path {
				continue
			}
			if err := tx.InsertAlias(ctx, storage.FromAlias(alias, row.ID)); err != nil {
				return err
			}
			stats.AliasesStored++
		}
		stats.FilesIndexed++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// finish removes deleted files, replaces the diagnostics and updates the
// library row
func (idx *Indexer) finish(ctx context.Context, stored *storage.Library, lib *library.Library,
	removed map[string]*storage.File, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for path, f := range removed {
		if err := tx.DeleteFile(ctx, f.ID); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		idx.logger.Debug("removed file from index", "path", path)
		stats.FilesRemoved++
	}

	diags := lib.Diagnostics()
	rows := make([]*storage.Diagnostic, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, storage.FromDiagnostic(d, stored.ID))
	}
	if err := tx.ReplaceDiagnostics(ctx, stored.ID, rows); err != nil {
		return fmt.Errorf("failed to store diagnostics: %w", err)
	}
	stats.Diagnostics = len(rows)

	stored.ScanID = stats.ScanID
	stored.TotalFiles = len(lib.Files())
	stored.TotalSignatures = lib.Table().Len()
	stored.Complete = lib.Complete
	stored.IndexVersion = storage.CurrentSchemaVersion
	stored.LastIndexedAt = time.Now()
	if err := tx.UpdateLibrary(ctx, stored); err != nil {
		return fmt.Errorf("failed to update library stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// fileChanged reports whether the stored row of a file is stale
func fileChanged(prev *storage.File, f *library.File, table *symtab.Table) bool {
	if prev.ContentHash != f.Hash {
		return true
	}
	failed := f.Err != nil
	if failed != (prev.ParseError != nil) {
		return true
	}
	return prev.DefinitionsHash != definitionsHash(table, f.Path)
}

// definitionsHash digests what the published table attributes to a file.
// Duplicate elimination is library-wide, so an unchanged file can gain or
// lose definitions when a sibling changes.
func definitionsHash(table *symtab.Table, path string) [32]byte {
	h := sha256.New()
	for sig := range table.InFile(path) {
		fmt.Fprintf(h, "sig\x00%s\x00%s\x00%d\n", sig.Name, sig.TypeView(), sig.Location.Line)
	}
	for alias := range table.Aliases() {
		if alias.Location.File == path {
			fmt.Fprintf(h, "alias\x00%s\x00%s\n", alias.Name, alias.Type)
		}
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
