package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/luacats-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// Both drivers include the SQLite message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Library operations

const librarySelect = `
	SELECT id, root_path, scan_id, total_files, total_signatures, complete,
	       index_version, last_indexed_at, created_at, updated_at
	FROM libraries
`

func scanLibrary(row interface{ Scan(...any) error }) (*Library, error) {
	var lib Library
	var scanID sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&lib.ID, &lib.RootPath, &scanID, &lib.TotalFiles, &lib.TotalSignatures,
		&lib.Complete, &lib.IndexVersion, &lastIndexedAt, &lib.CreatedAt, &lib.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lib.ScanID = scanID.String
	if lastIndexedAt.Valid {
		lib.LastIndexedAt = lastIndexedAt.Time
	}
	return &lib, nil
}

// createLibraryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createLibraryWithQuerier(ctx context.Context, q querier, lib *Library) error {
	query := `
		INSERT INTO libraries (root_path, scan_id, index_version, complete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, lib.RootPath, lib.ScanID, lib.IndexVersion, lib.Complete, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("library %s: %w", lib.RootPath, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create library: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	lib.ID = id
	lib.CreatedAt = now
	lib.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateLibrary(ctx context.Context, lib *Library) error {
	return s.createLibraryWithQuerier(ctx, s.querier(), lib)
}

func (s *SQLiteStorage) getLibraryWithQuerier(ctx context.Context, q querier, rootPath string) (*Library, error) {
	return scanLibrary(q.QueryRowContext(ctx, librarySelect+" WHERE root_path = ?", rootPath))
}

func (s *SQLiteStorage) GetLibrary(ctx context.Context, rootPath string) (*Library, error) {
	return s.getLibraryWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getLibraryByIDWithQuerier(ctx context.Context, q querier, libraryID int64) (*Library, error) {
	return scanLibrary(q.QueryRowContext(ctx, librarySelect+" WHERE id = ?", libraryID))
}

func (s *SQLiteStorage) GetLibraryByID(ctx context.Context, libraryID int64) (*Library, error) {
	return s.getLibraryByIDWithQuerier(ctx, s.querier(), libraryID)
}

// updateLibraryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateLibraryWithQuerier(ctx context.Context, q querier, lib *Library) error {
	query := `
		UPDATE libraries
		SET scan_id = ?, total_files = ?, total_signatures = ?, complete = ?,
		    index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		lib.ScanID, lib.TotalFiles, lib.TotalSignatures, lib.Complete,
		lib.IndexVersion, lib.LastIndexedAt, now, lib.ID)
	if err != nil {
		return fmt.Errorf("failed to update library: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	lib.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateLibrary(ctx context.Context, lib *Library) error {
	return s.updateLibraryWithQuerier(ctx, s.querier(), lib)
}

func (s *SQLiteStorage) listLibrariesWithQuerier(ctx context.Context, q querier) ([]*Library, error) {
	rows, err := q.QueryContext(ctx, librarySelect+" ORDER BY root_path")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	libs := make([]*Library, 0)
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

func (s *SQLiteStorage) ListLibraries(ctx context.Context) ([]*Library, error) {
	return s.listLibrariesWithQuerier(ctx, s.querier())
}

// File operations

const fileSelect = `
	SELECT id, library_id, file_path, content_hash, definitions_hash, is_meta, meta_name,
	       mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at
	FROM files
`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var file File
	var hash, defs []byte
	var metaName, parseError sql.NullString
	err := row.Scan(
		&file.ID, &file.LibraryID, &file.FilePath, &hash, &defs, &file.IsMeta, &metaName,
		&file.ModTime, &file.SizeBytes, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	copy(file.DefinitionsHash[:], defs)
	file.MetaName = metaName.String
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

// upsertFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (library_id, file_path, content_hash, definitions_hash, is_meta, meta_name,
		                   mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(library_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			definitions_hash = excluded.definitions_hash,
			is_meta = excluded.is_meta,
			meta_name = excluded.meta_name,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.LibraryID, file.FilePath, file.ContentHash[:], file.DefinitionsHash[:],
		file.IsMeta, file.MetaName, file.ModTime, file.SizeBytes, file.ParseError,
		now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, libraryID int64, filePath string) (*File, error) {
	return scanFile(q.QueryRowContext(ctx, fileSelect+" WHERE library_id = ? AND file_path = ?", libraryID, filePath))
}

func (s *SQLiteStorage) GetFile(ctx context.Context, libraryID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), libraryID, filePath)
}

// deleteFileWithQuerier removes a file; its signatures and aliases cascade
func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

// listFilesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, libraryID int64) ([]*File, error) {
	rows, err := q.QueryContext(ctx, fileSelect+" WHERE library_id = ? ORDER BY file_path", libraryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, libraryID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), libraryID)
}

// Signature operations

// insertSignatureWithQuerier writes the signature row and its params,
// returns and generics
func (s *SQLiteStorage) insertSignatureWithQuerier(ctx context.Context, q querier, sig *Signature) error {
	query := `
		INSERT INTO signatures (
			file_id, name, decl_view, type_view, description, line, col,
			documented, is_meta, is_method, is_local, deprecated, nodiscard, async, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		sig.FileID, sig.Name, sig.View, sig.TypeView, sig.Description, sig.Line, sig.Column,
		sig.Documented, sig.IsMeta, sig.IsMethod, sig.IsLocal, sig.Deprecated, sig.NoDiscard, sig.Async, now,
	).Scan(&sig.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("signature %s: %w", sig.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	sig.CreatedAt = now

	for _, p := range sig.Params {
		_, err := q.ExecContext(ctx, `
			INSERT INTO params (signature_id, position, name, type, description, optional, documented, extraneous)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sig.ID, p.Position, p.Name, p.Type, p.Description, p.Optional, p.Documented, p.Extraneous)
		if err != nil {
			return fmt.Errorf("failed to insert param %s of %s: %w", p.Name, sig.Name, err)
		}
	}
	for _, r := range sig.Returns {
		_, err := q.ExecContext(ctx, `
			INSERT INTO returns (signature_id, position, name, type, description)
			VALUES (?, ?, ?, ?, ?)
		`, sig.ID, r.Position, r.Name, r.Type, r.Description)
		if err != nil {
			return fmt.Errorf("failed to insert return %d of %s: %w", r.Position, sig.Name, err)
		}
	}
	for _, g := range sig.Generics {
		_, err := q.ExecContext(ctx, `
			INSERT INTO generics (signature_id, position, name, constraint_type)
			VALUES (?, ?, ?, ?)
		`, sig.ID, g.Position, g.Name, g.Constraint)
		if err != nil {
			return fmt.Errorf("failed to insert generic %s of %s: %w", g.Name, sig.Name, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) InsertSignature(ctx context.Context, sig *Signature) error {
	return s.insertSignatureWithQuerier(ctx, s.querier(), sig)
}

const signatureSelect = `
	SELECT s.id, s.file_id, s.name, s.decl_view, s.type_view, s.description, s.line, s.col,
	       s.documented, s.is_meta, s.is_method, s.is_local, s.deprecated, s.nodiscard, s.async,
	       s.created_at, f.file_path
	FROM signatures s
	JOIN files f ON f.id = s.file_id
`

func scanSignature(row interface{ Scan(...any) error }) (*Signature, error) {
	var sig Signature
	var description sql.NullString
	var col sql.NullInt64
	err := row.Scan(
		&sig.ID, &sig.FileID, &sig.Name, &sig.View, &sig.TypeView, &description, &sig.Line, &col,
		&sig.Documented, &sig.IsMeta, &sig.IsMethod, &sig.IsLocal, &sig.Deprecated, &sig.NoDiscard, &sig.Async,
		&sig.CreatedAt, &sig.FilePath,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sig.Description = description.String
	sig.Column = int(col.Int64)
	return &sig, nil
}

// loadSignatureDetails fills params, returns and generics. It must not be
// called while another result set is open on a single-connection pool.
func (s *SQLiteStorage) loadSignatureDetails(ctx context.Context, q querier, sig *Signature) error {
	rows, err := q.QueryContext(ctx, `
		SELECT position, name, type, description, optional, documented, extraneous
		FROM params WHERE signature_id = ? ORDER BY position
	`, sig.ID)
	if err != nil {
		return err
	}
	sig.Params = nil
	for rows.Next() {
		var p Param
		var description sql.NullString
		if err := rows.Scan(&p.Position, &p.Name, &p.Type, &description, &p.Optional, &p.Documented, &p.Extraneous); err != nil {
			_ = rows.Close()
			return err
		}
		p.Description = description.String
		sig.Params = append(sig.Params, p)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT position, name, type, description
		FROM returns WHERE signature_id = ? ORDER BY position
	`, sig.ID)
	if err != nil {
		return err
	}
	sig.Returns = nil
	for rows.Next() {
		var r Return
		var name, description sql.NullString
		if err := rows.Scan(&r.Position, &name, &r.Type, &description); err != nil {
			_ = rows.Close()
			return err
		}
		r.Name = name.String
		r.Description = description.String
		sig.Returns = append(sig.Returns, r)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT position, name, constraint_type
		FROM generics WHERE signature_id = ? ORDER BY position
	`, sig.ID)
	if err != nil {
		return err
	}
	sig.Generics = nil
	for rows.Next() {
		var g Generic
		var constraint sql.NullString
		if err := rows.Scan(&g.Position, &g.Name, &constraint); err != nil {
			_ = rows.Close()
			return err
		}
		g.Constraint = constraint.String
		sig.Generics = append(sig.Generics, g)
	}
	return closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *SQLiteStorage) getSignatureWithQuerier(ctx context.Context, q querier, libraryID int64, name string) (*Signature, error) {
	// a name is unique per library; the lowest id is the first definition
	sig, err := scanSignature(q.QueryRowContext(ctx,
		signatureSelect+" WHERE f.library_id = ? AND s.name = ? ORDER BY s.id LIMIT 1", libraryID, name))
	if err != nil {
		return nil, err
	}
	if err := s.loadSignatureDetails(ctx, q, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func (s *SQLiteStorage) GetSignature(ctx context.Context, libraryID int64, name string) (*Signature, error) {
	return s.getSignatureWithQuerier(ctx, s.querier(), libraryID, name)
}

func (s *SQLiteStorage) getSignatureByIDWithQuerier(ctx context.Context, q querier, signatureID int64) (*Signature, error) {
	sig, err := scanSignature(q.QueryRowContext(ctx, signatureSelect+" WHERE s.id = ?", signatureID))
	if err != nil {
		return nil, err
	}
	if err := s.loadSignatureDetails(ctx, q, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func (s *SQLiteStorage) GetSignatureByID(ctx context.Context, signatureID int64) (*Signature, error) {
	return s.getSignatureByIDWithQuerier(ctx, s.querier(), signatureID)
}

func (s *SQLiteStorage) listSignaturesWithQuerier(ctx context.Context, q querier, libraryID int64, filters *SignatureFilters) ([]*Signature, error) {
	var sb strings.Builder
	sb.WriteString(signatureSelect)
	sb.WriteString(" WHERE f.library_id = ?")
	args := []any{libraryID}

	limit := -1
	if filters != nil {
		if filters.FilePath != "" {
			sb.WriteString(" AND f.file_path = ?")
			args = append(args, filters.FilePath)
		}
		if filters.Prefix != "" {
			sb.WriteString(" AND substr(s.name, 1, ?) = ?")
			args = append(args, len(filters.Prefix), filters.Prefix)
		}
		if filters.Documented != nil {
			sb.WriteString(" AND s.documented = ?")
			args = append(args, *filters.Documented)
		}
		if filters.Limit > 0 {
			limit = filters.Limit
		}
	}
	sb.WriteString(" ORDER BY f.file_path, s.line LIMIT ?")
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	sigs := make([]*Signature, 0)
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	for _, sig := range sigs {
		if err := s.loadSignatureDetails(ctx, q, sig); err != nil {
			return nil, err
		}
	}
	return sigs, nil
}

func (s *SQLiteStorage) ListSignatures(ctx context.Context, libraryID int64, filters *SignatureFilters) ([]*Signature, error) {
	return s.listSignaturesWithQuerier(ctx, s.querier(), libraryID, filters)
}

// deleteSignaturesByFileWithQuerier removes a file's signatures; params,
// returns and generics cascade
func (s *SQLiteStorage) deleteSignaturesByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM signatures WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteSignaturesByFile(ctx context.Context, fileID int64) error {
	return s.deleteSignaturesByFileWithQuerier(ctx, s.querier(), fileID)
}

// Alias operations

func (s *SQLiteStorage) insertAliasWithQuerier(ctx context.Context, q querier, alias *Alias) error {
	query := `
		INSERT INTO aliases (file_id, name, type, description, line, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		alias.FileID, alias.Name, alias.Type, alias.Description, alias.Line, now).Scan(&alias.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("alias %s: %w", alias.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert alias: %w", err)
	}
	alias.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertAlias(ctx context.Context, alias *Alias) error {
	return s.insertAliasWithQuerier(ctx, s.querier(), alias)
}

const aliasSelect = `
	SELECT a.id, a.file_id, a.name, a.type, a.description, a.line, a.created_at, f.file_path
	FROM aliases a
	JOIN files f ON f.id = a.file_id
`

func scanAlias(row interface{ Scan(...any) error }) (*Alias, error) {
	var alias Alias
	var description sql.NullString
	err := row.Scan(&alias.ID, &alias.FileID, &alias.Name, &alias.Type, &description,
		&alias.Line, &alias.CreatedAt, &alias.FilePath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	alias.Description = description.String
	return &alias, nil
}

func (s *SQLiteStorage) getAliasWithQuerier(ctx context.Context, q querier, libraryID int64, name string) (*Alias, error) {
	return scanAlias(q.QueryRowContext(ctx,
		aliasSelect+" WHERE f.library_id = ? AND a.name = ? ORDER BY a.id LIMIT 1", libraryID, name))
}

func (s *SQLiteStorage) GetAlias(ctx context.Context, libraryID int64, name string) (*Alias, error) {
	return s.getAliasWithQuerier(ctx, s.querier(), libraryID, name)
}

func (s *SQLiteStorage) listAliasesWithQuerier(ctx context.Context, q querier, libraryID int64) ([]*Alias, error) {
	rows, err := q.QueryContext(ctx, aliasSelect+" WHERE f.library_id = ? ORDER BY a.name", libraryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	aliases := make([]*Alias, 0)
	for rows.Next() {
		alias, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func (s *SQLiteStorage) ListAliases(ctx context.Context, libraryID int64) ([]*Alias, error) {
	return s.listAliasesWithQuerier(ctx, s.querier(), libraryID)
}

func (s *SQLiteStorage) deleteAliasesByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM aliases WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteAliasesByFile(ctx context.Context, fileID int64) error {
	return s.deleteAliasesByFileWithQuerier(ctx, s.querier(), fileID)
}

// Diagnostic operations

// replaceDiagnosticsWithQuerier swaps the library's diagnostics for diags.
// Diagnostics depend on the whole library, so they are never updated per file.
func (s *SQLiteStorage) replaceDiagnosticsWithQuerier(ctx context.Context, q querier, libraryID int64, diags []*Diagnostic) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM diagnostics WHERE library_id = ?`, libraryID); err != nil {
		return fmt.Errorf("failed to clear diagnostics: %w", err)
	}

	query := `
		INSERT INTO diagnostics (library_id, severity, severity_rank, kind, message,
		                         file_path, line, col, related_path, related_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	for _, d := range diags {
		sev, err := types.ParseSeverity(d.Severity)
		if err != nil {
			return err
		}
		d.LibraryID = libraryID
		err = q.QueryRowContext(ctx, query,
			libraryID, d.Severity, int(sev), d.Kind, d.Message,
			d.FilePath, d.Line, d.Column, nullString(d.RelatedPath), d.RelatedLine, now,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to insert diagnostic: %w", err)
		}
		d.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) ReplaceDiagnostics(ctx context.Context, libraryID int64, diags []*Diagnostic) error {
	return s.replaceDiagnosticsWithQuerier(ctx, s.querier(), libraryID, diags)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteStorage) listDiagnosticsWithQuerier(ctx context.Context, q querier, libraryID int64, filters *DiagnosticFilters) ([]*Diagnostic, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, library_id, severity, kind, message, file_path, line, col,
		       related_path, related_line, created_at
		FROM diagnostics
		WHERE library_id = ?`)
	args := []any{libraryID}

	limit := -1
	if filters != nil {
		if filters.FilePath != "" {
			sb.WriteString(" AND file_path = ?")
			args = append(args, filters.FilePath)
		}
		if filters.MinSeverity > 0 {
			sb.WriteString(" AND severity_rank <= ?")
			args = append(args, int(filters.MinSeverity))
		}
		if len(filters.Kinds) > 0 {
			sb.WriteString(" AND kind IN (?" + strings.Repeat(", ?", len(filters.Kinds)-1) + ")")
			for _, k := range filters.Kinds {
				args = append(args, k)
			}
		}
		if filters.Limit > 0 {
			limit = filters.Limit
		}
	}
	sb.WriteString(" ORDER BY id LIMIT ?")
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	diags := make([]*Diagnostic, 0)
	for rows.Next() {
		var d Diagnostic
		var filePath, relatedPath sql.NullString
		var line, col, relatedLine sql.NullInt64
		err := rows.Scan(&d.ID, &d.LibraryID, &d.Severity, &d.Kind, &d.Message,
			&filePath, &line, &col, &relatedPath, &relatedLine, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		d.FilePath = filePath.String
		d.Line = int(line.Int64)
		d.Column = int(col.Int64)
		d.RelatedPath = relatedPath.String
		d.RelatedLine = int(relatedLine.Int64)
		diags = append(diags, &d)
	}
	return diags, rows.Err()
}

func (s *SQLiteStorage) ListDiagnostics(ctx context.Context, libraryID int64, filters *DiagnosticFilters) ([]*Diagnostic, error) {
	return s.listDiagnosticsWithQuerier(ctx, s.querier(), libraryID, filters)
}

// Search operations

// searchTextWithQuerier runs an FTS5 query over signature names,
// descriptions and type views. Scores are BM25 negated so that larger is
// better; name matches weigh most.
func (s *SQLiteStorage) searchTextWithQuerier(ctx context.Context, q querier, libraryID int64, query string, limit int) ([]TextResult, error) {
	sqlQuery := `
		SELECT s.id, bm25(signatures_fts, 10.0, 1.0, 2.0) AS score
		FROM signatures_fts
		JOIN signatures s ON s.id = signatures_fts.rowid
		JOIN files f ON f.id = s.file_id
		WHERE signatures_fts MATCH ? AND f.library_id = ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, query, libraryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search signatures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.SignatureID, &r.BM25Score); err != nil {
			return nil, err
		}
		r.BM25Score = -r.BM25Score
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchText(ctx context.Context, libraryID int64, query string, limit int) ([]TextResult, error) {
	return s.searchTextWithQuerier(ctx, s.querier(), libraryID, query, limit)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, libraryID int64) (*LibraryStatus, error) {
	lib, err := s.getLibraryByIDWithQuerier(ctx, q, libraryID)
	if err != nil {
		return nil, err
	}

	status := &LibraryStatus{
		Library:          lib,
		LastIndexedAt:    lib.LastIndexedAt,
		DiagnosticsCount: make(map[string]int),
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(parse_error) FROM files WHERE library_id = ?
	`, libraryID).Scan(&status.FilesCount, &status.FailedFilesCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM signatures s
		JOIN files f ON s.file_id = f.id
		WHERE f.library_id = ?
	`, libraryID).Scan(&status.SignaturesCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM aliases a
		JOIN files f ON a.file_id = f.id
		WHERE f.library_id = ?
	`, libraryID).Scan(&status.AliasesCount)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM diagnostics
		WHERE library_id = ?
		GROUP BY severity
	`, libraryID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.DiagnosticsCount[sev] = n
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexesBuilt:    true, // FTS indexes are created with migrations
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, libraryID int64) (*LibraryStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), libraryID)
}

// Transaction implementations run every operation on the transaction

func (t *sqliteTx) CreateLibrary(ctx context.Context, lib *Library) error {
	return t.storage.createLibraryWithQuerier(ctx, t.querier(), lib)
}

func (t *sqliteTx) GetLibrary(ctx context.Context, rootPath string) (*Library, error) {
	return t.storage.getLibraryWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) GetLibraryByID(ctx context.Context, libraryID int64) (*Library, error) {
	return t.storage.getLibraryByIDWithQuerier(ctx, t.querier(), libraryID)
}

func (t *sqliteTx) UpdateLibrary(ctx context.Context, lib *Library) error {
	return t.storage.updateLibraryWithQuerier(ctx, t.querier(), lib)
}

func (t *sqliteTx) ListLibraries(ctx context.Context) ([]*Library, error) {
	return t.storage.listLibrariesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, libraryID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), libraryID, filePath)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, libraryID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), libraryID)
}

func (t *sqliteTx) InsertSignature(ctx context.Context, sig *Signature) error {
	return t.storage.insertSignatureWithQuerier(ctx, t.querier(), sig)
}

func (t *sqliteTx) GetSignature(ctx context.Context, libraryID int64, name string) (*Signature, error) {
	return t.storage.getSignatureWithQuerier(ctx, t.querier(), libraryID, name)
}

func (t *sqliteTx) GetSignatureByID(ctx context.Context, signatureID int64) (*Signature, error) {
	return t.storage.getSignatureByIDWithQuerier(ctx, t.querier(), signatureID)
}

func (t *sqliteTx) ListSignatures(ctx context.Context, libraryID int64, filters *SignatureFilters) ([]*Signature, error) {
	return t.storage.listSignaturesWithQuerier(ctx, t.querier(), libraryID, filters)
}

func (t *sqliteTx) DeleteSignaturesByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteSignaturesByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) InsertAlias(ctx context.Context, alias *Alias) error {
	return t.storage.insertAliasWithQuerier(ctx, t.querier(), alias)
}

func (t *sqliteTx) GetAlias(ctx context.Context, libraryID int64, name string) (*Alias, error) {
	return t.storage.getAliasWithQuerier(ctx, t.querier(), libraryID, name)
}

func (t *sqliteTx) ListAliases(ctx context.Context, libraryID int64) ([]*Alias, error) {
	return t.storage.listAliasesWithQuerier(ctx, t.querier(), libraryID)
}

func (t *sqliteTx) DeleteAliasesByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteAliasesByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ReplaceDiagnostics(ctx context.Context, libraryID int64, diags []*Diagnostic) error {
	return t.storage.replaceDiagnosticsWithQuerier(ctx, t.querier(), libraryID, diags)
}

func (t *sqliteTx) ListDiagnostics(ctx context.Context, libraryID int64, filters *DiagnosticFilters) ([]*Diagnostic, error) {
	return t.storage.listDiagnosticsWithQuerier(ctx, t.querier(), libraryID, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, libraryID int64, query string, limit int) ([]TextResult, error) {
	return t.storage.searchTextWithQuerier(ctx, t.querier(), libraryID, query, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context, libraryID int64) (*LibraryStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), libraryID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
