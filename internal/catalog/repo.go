package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/runeport/internal/apperr"
	"github.com/starford/runeport/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	ID         string
	Title      string
	Template   string
	SourcePath string
	DestPath   string
	Checksum   string // source file digest, used to skip unchanged documents
	Warnings   []models.Warning
	UpdatedAt  time.Time
}

// RefRow is one cross-reference found in a document. ResolvedPath is empty
// when the target was absent from the export.
type RefRow struct {
	SourceID     string
	Target       string
	Label        string
	ResolvedPath string
}

// SearchResult represents one search hit.
type SearchResult struct {
	DestPath string
	Title    string
	Snippet  string
}

// UpsertDocument inserts or replaces a document, its FTS entry, and its
// references within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, body string, references []RefRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	warnJSON, _ := json.Marshal(d.Warnings)

	_, err = tx.Exec(`
		INSERT INTO documents (id, title, template, source_path, dest_path, checksum, warnings, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			template    = excluded.template,
			source_path = excluded.source_path,
			dest_path   = excluded.dest_path,
			checksum    = excluded.checksum,
			warnings    = excluded.warnings,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, d.ID, d.Title, d.Template, d.SourcePath, d.DestPath, d.Checksum, string(warnJSON), body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d.DestPath, d.Title, body); err != nil {
		return err
	}

	// Replace references: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM refs WHERE source_id = ?`, d.ID)
	if len(references) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source_id, target, label, resolved_path) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range references {
			if _, err := stmt.Exec(d.ID, r.Target, r.Label, r.ResolvedPath); err != nil {
				return fmt.Errorf("catalog: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteBySource removes the document converted from sourcePath, along with
// its FTS entry and references.
func (db *DB) DeleteBySource(sourcePath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id, destPath string
	err = tx.QueryRow(`SELECT id, dest_path FROM documents WHERE source_path = ?`, sourcePath).Scan(&id, &destPath)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("catalog: lookup by source: %w", err)
	}

	ftsDelete(tx, destPath)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE id = ?`, id)

	return tx.Commit()
}

// GetDocument returns the document written to destPath.
func (db *DB) GetDocument(destPath string) (*DocumentRow, error) {
	return db.getWhere(`dest_path = ?`, destPath)
}

// GetByID returns the document with the given export identifier.
func (db *DB) GetByID(id string) (*DocumentRow, error) {
	return db.getWhere(`id = ?`, id)
}

// GetByTitle returns the first document (by identifier order) whose title
// matches case-insensitively.
func (db *DB) GetByTitle(title string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, template, source_path, dest_path, checksum, warnings, updated_at
		FROM documents WHERE title = ? COLLATE NOCASE ORDER BY id LIMIT 1`, title)

	var d DocumentRow
	var warnJSON string
	err := row.Scan(&d.ID, &d.Title, &d.Template, &d.SourcePath, &d.DestPath, &d.Checksum, &warnJSON, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get by title: %w", err)
	}
	_ = json.Unmarshal([]byte(warnJSON), &d.Warnings)
	return &d, nil
}

func (db *DB) getWhere(cond string, arg any) (*DocumentRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, template, source_path, dest_path, checksum, warnings, updated_at
		FROM documents WHERE `+cond, arg)

	var d DocumentRow
	var warnJSON string
	err := row.Scan(&d.ID, &d.Title, &d.Template, &d.SourcePath, &d.DestPath, &d.Checksum, &warnJSON, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get document: %w", err)
	}
	_ = json.Unmarshal([]byte(warnJSON), &d.Warnings)
	return &d, nil
}

// ListDocuments returns paginated documents with an optional template filter.
func (db *DB) ListDocuments(limit, offset int, template, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC"
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "dest_path":
		order = "dest_path ASC"
	}

	where, args := "1=1", []any{}
	if template != "" {
		where, args = "template = ?", []any{template}
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count documents: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, template, source_path, dest_path, checksum, warnings, updated_at
		FROM documents WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		var warnJSON string
		if err := rows.Scan(&d.ID, &d.Title, &d.Template, &d.SourcePath, &d.DestPath, &d.Checksum, &warnJSON, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(warnJSON), &d.Warnings)
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// Unresolved returns every reference whose target was absent from the export.
func (db *DB) Unresolved() ([]RefRow, error) {
	rows, err := db.conn.Query(`
		SELECT source_id, target, label, resolved_path
		FROM refs WHERE resolved_path = '' ORDER BY source_id, target`)
	if err != nil {
		return nil, fmt.Errorf("catalog: unresolved refs: %w", err)
	}
	defer rows.Close()

	var out []RefRow
	for rows.Next() {
		var r RefRow
		if err := rows.Scan(&r.SourceID, &r.Target, &r.Label, &r.ResolvedPath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordAssets upserts the run's asset dedup table.
func (db *DB) RecordAssets(mapping map[string]string) error {
	if len(mapping) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO assets (ref, name) VALUES (?, ?)
		ON CONFLICT(ref) DO UPDATE SET name = excluded.name`)
	if err != nil {
		return fmt.Errorf("catalog: prepare asset insert: %w", err)
	}
	defer stmt.Close()
	for ref, name := range mapping {
		if _, err := stmt.Exec(ref, name); err != nil {
			return fmt.Errorf("catalog: insert asset: %w", err)
		}
	}
	return tx.Commit()
}

// AssetMap returns the recorded reference -> destination filename table.
func (db *DB) AssetMap() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT ref, name FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("catalog: asset map: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ref, name string
		if err := rows.Scan(&ref, &name); err != nil {
			return nil, err
		}
		out[ref] = name
	}
	return out, rows.Err()
}

// AllChecksums returns source_path -> checksum for every catalogued document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT source_path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
