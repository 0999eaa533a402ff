// Package indexer persists scanned stub libraries to storage.
//
// # Basic Usage
//
//	idx := indexer.New(store, logger)
//
//	stats, err := idx.IndexLibrary(ctx, "/path/to/stubs", &indexer.Config{
//	    Workers: 4,
//	    Timeout: time.Minute,
//	})
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Indexing Pipeline
//
//  1. Scan: library.Scan parses every stub file in parallel and publishes
//     one validated symbol table
//  2. Incremental Decision: compare content and definitions hashes with the
//     stored rows, skip unchanged files
//  3. Store: rewrite the rows of changed files in batched transactions
//  4. Finish: drop files no longer on disk, replace the library's
//     diagnostics, update the library row
//
// # Incremental Indexing
//
//	// First index: processes all files
//	stats1, _ := idx.IndexLibrary(ctx, root, nil)
//	// Files: 42 indexed, 0 skipped
//
//	// Subsequent index: only changed files
//	stats2, _ := idx.IndexLibrary(ctx, root, nil)
//	// Files: 0 indexed, 42 skipped
//
// A file is unchanged when its SHA-256 content hash matches and the
// definitions the library attributes to it are the same. The second check
// catches a duplicate in a sibling file taking over or giving up a name.
//
// # Concurrency
//
// Only one index run may proceed at a time per Indexer. A concurrent call
// returns ErrIndexingInProgress immediately.
package indexer
