// Package testutil provides shared test helpers for setting up export trees,
// vaults, and catalogs.
package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/runeport/internal/catalog"
	"github.com/starford/runeport/internal/storage"
)

// TestCatalog creates a temporary SQLite catalog that is automatically
// cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "runeport-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTree creates a temporary directory with a storage.Provider over it.
// Used for both export trees and destination vaults.
func TestTree(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteDoc marshals an export envelope into the tree at the given path.
func WriteDoc(t *testing.T, store storage.Provider, path string, envelope map[string]any) {
	t.Helper()
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(path, data); err != nil {
		t.Fatal(err)
	}
}

// Envelope builds a minimal export document envelope.
func Envelope(id, title, template, content string) map[string]any {
	return map[string]any{
		"id":       id,
		"title":    title,
		"template": template,
		"content":  content,
	}
}

// DiscardLogger returns a logger that swallows all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
