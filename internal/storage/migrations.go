package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV110Up,
		Down:    migrationV110Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Libraries table
CREATE TABLE IF NOT EXISTS libraries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    root_path TEXT NOT NULL UNIQUE,
    scan_id TEXT,
    total_files INTEGER DEFAULT 0,
    total_signatures INTEGER DEFAULT 0,
    complete BOOLEAN DEFAULT 1,
    index_version TEXT NOT NULL,
    last_indexed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Files table
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    library_id INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    content_hash BLOB NOT NULL,
    definitions_hash BLOB,
    is_meta BOOLEAN DEFAULT 0,
    meta_name TEXT,
    mod_time TIMESTAMP,
    size_bytes INTEGER,
    parse_error TEXT,
    last_indexed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE,
    UNIQUE(library_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_files_library ON files(library_id);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);

-- Signatures table
CREATE TABLE IF NOT EXISTS signatures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    decl_view TEXT NOT NULL,
    type_view TEXT NOT NULL,
    description TEXT,
    line INTEGER NOT NULL,
    col INTEGER,
    documented BOOLEAN DEFAULT 0,
    is_meta BOOLEAN DEFAULT 0,
    is_method BOOLEAN DEFAULT 0,
    is_local BOOLEAN DEFAULT 0,
    deprecated BOOLEAN DEFAULT 0,
    nodiscard BOOLEAN DEFAULT 0,
    async BOOLEAN DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
    UNIQUE(file_id, name)
);

CREATE INDEX IF NOT EXISTS idx_signatures_file ON signatures(file_id);
CREATE INDEX IF NOT EXISTS idx_signatures_name ON signatures(name);

-- Params table
CREATE TABLE IF NOT EXISTS params (
    signature_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT,
    optional BOOLEAN DEFAULT 0,
    documented BOOLEAN DEFAULT 0,
    extraneous BOOLEAN DEFAULT 0,
    PRIMARY KEY (signature_id, position),
    FOREIGN KEY (signature_id) REFERENCES signatures(id) ON DELETE CASCADE
);

-- Returns table
CREATE TABLE IF NOT EXISTS returns (
    signature_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT,
    type TEXT NOT NULL,
    description TEXT,
    PRIMARY KEY (signature_id, position),
    FOREIGN KEY (signature_id) REFERENCES signatures(id) ON DELETE CASCADE
);

-- Generics table
CREATE TABLE IF NOT EXISTS generics (
    signature_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    constraint_type TEXT,
    PRIMARY KEY (signature_id, position),
    FOREIGN KEY (signature_id) REFERENCES signatures(id) ON DELETE CASCADE
);

-- Aliases table
CREATE TABLE IF NOT EXISTS aliases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT,
    line INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
    UNIQUE(file_id, name)
);

CREATE INDEX IF NOT EXISTS idx_aliases_name ON aliases(name);

-- Diagnostics table
CREATE TABLE IF NOT EXISTS diagnostics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    library_id INTEGER NOT NULL,
    severity TEXT NOT NULL,
    severity_rank INTEGER NOT NULL,
    kind TEXT NOT NULL,
    message TEXT NOT NULL,
    file_path TEXT,
    line INTEGER,
    col INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_library ON diagnostics(library_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(library_id, file_path);

-- Full-text search on signatures
CREATE VIRTUAL TABLE IF NOT EXISTS signatures_fts USING fts5(
    name, description, type_view,
    content='signatures',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS signatures_ai AFTER INSERT ON signatures BEGIN
    INSERT INTO signatures_fts(rowid, name, description, type_view)
    VALUES (new.id, new.name, new.description, new.type_view);
END;

CREATE TRIGGER IF NOT EXISTS signatures_ad AFTER DELETE ON signatures BEGIN
    INSERT INTO signatures_fts(signatures_fts, rowid, name, description, type_view)
    VALUES ('delete', old.id, old.name, old.description, old.type_view);
END;

CREATE TRIGGER IF NOT EXISTS signatures_au AFTER UPDATE ON signatures BEGIN
    INSERT INTO signatures_fts(signatures_fts, rowid, name, description, type_view)
    VALUES ('delete', old.id, old.name, old.description, old.type_view);
    INSERT INTO signatures_fts(rowid, name, description, type_view)
    VALUES (new.id, new.name, new.description, new.type_view);
END;
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TRIGGER IF EXISTS signatures_au;
DROP TRIGGER IF EXISTS signatures_ad;
DROP TRIGGER IF EXISTS signatures_ai;

DROP TABLE IF EXISTS signatures_fts;
DROP TABLE IF EXISTS diagnostics;
DROP TABLE IF EXISTS aliases;
DROP TABLE IF EXISTS generics;
DROP TABLE IF EXISTS returns;
DROP TABLE IF EXISTS params;
DROP TABLE IF EXISTS signatures;
DROP TABLE IF EXISTS files;
DROP TABLE IF EXISTS libraries;
DROP TABLE IF EXISTS schema_version;
`

// 1.1.0 records the related location of diagnostics such as duplicates
const migrationV110Up = `
ALTER TABLE diagnostics ADD COLUMN related_path TEXT;
ALTER TABLE diagnostics ADD COLUMN related_line INTEGER;
`

const migrationV110Down = `
ALTER TABLE diagnostics DROP COLUMN related_line;
ALTER TABLE diagnostics DROP COLUMN related_path;
`

// currentVersion returns the highest applied schema version, 0.0.0 when
// no migration has been applied
func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	current := semver.MustParse("0.0.0")

	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	// applied_at has second precision, so compare versions rather than timestamps
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	// Find migration
	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	_, err = db.ExecContext(ctx, migration.Down)
	if err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The 1.0.0 down script drops schema_version itself
	if migration.Version == AllMigrations[0].Version {
		return nil
	}

	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
