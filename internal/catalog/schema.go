// Package catalog provides the SQLite-backed record of a conversion run:
// every converted document, its cross-references, and the asset dedup map.
// It powers incremental reconversion, the preview API, and optional FTS5
// full-text search.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	template    TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL,
	dest_path   TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	warnings    TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_source ON documents(source_path);
CREATE INDEX IF NOT EXISTS idx_documents_dest ON documents(dest_path);

CREATE TABLE IF NOT EXISTS refs (
	source_id     TEXT NOT NULL,
	target        TEXT NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	resolved_path TEXT NOT NULL DEFAULT '',
	UNIQUE(source_id, target, label)
);

CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source_id);

CREATE TABLE IF NOT EXISTS assets (
	ref  TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
