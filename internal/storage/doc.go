// Package storage provides SQLite-based persistence for indexed stub libraries.
//
// The storage layer manages:
//   - Library metadata and the ID of the scan that last wrote it
//   - File information and content hashes
//   - Signatures with their params, returns and generics
//   - Type aliases
//   - Diagnostics
//   - A full-text search index over signatures
//
// # Database Schema
//
// Tables:
//   - libraries: Library root path, totals, completeness
//   - files: File paths, SHA-256 content hashes, meta flags
//   - signatures: One row per published signature
//   - params, returns, generics: Ordered children of a signature
//   - aliases: Named types defined at file scope
//   - diagnostics: Every diagnostic of the last scan
//   - signatures_fts: FTS5 index over name, description and type view
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.luacats/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	lib, err := db.GetLibrary(ctx, "/abs/path/to/stubs")
//	sig, err := db.GetSignature(ctx, lib.ID, "string.format")
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if err := tx.InsertSignature(ctx, storage.FromSignature(sig, file.ID)); err != nil {
//	    return err
//	}
//
//	return tx.Commit()
//
// # Incremental Updates
//
// Compare hashes to detect changes. A file is rewritten when its content
// hash or its definitions hash differs from the stored row; diagnostics are
// always replaced for the whole library.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Build with
// -tags "sqlite_cgo,sqlite_fts5" to use github.com/mattn/go-sqlite3.
//
// # Error Handling
//
// Lookups of absent entities return ErrNotFound. Creating a row that
// violates a uniqueness constraint returns ErrAlreadyExists. Compare with
// errors.Is.
package storage
