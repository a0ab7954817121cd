package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/runeport/internal/apperr"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return f, dir
}

func TestNewFS_MissingRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	f, _ := newTestFS(t)
	if err := f.Write("Locations/town.md", []byte("# Town\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := f.Read("Locations/town.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "# Town\n" {
		t.Errorf("content = %q", got)
	}
	if !f.Exists("Locations/town.md") {
		t.Error("Exists = false after write")
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	f, dir := newTestFS(t)
	if err := f.Write("note.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".runeport-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	f, _ := newTestFS(t)
	if err := f.Write("../escape.md", []byte("x")); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("write: err = %v, want ErrInvalidPath", err)
	}
	if _, err := f.Read("../../etc/passwd"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("read: err = %v, want ErrInvalidPath", err)
	}
	if _, err := f.Read("/etc/passwd"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("absolute: err = %v, want ErrInvalidPath", err)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	f, _ := newTestFS(t)
	for _, p := range []string{"b/doc.json", "a/doc.json", "a/image.jpg", "top.json"} {
		if err := f.Write(p, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.List(".json")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/doc.json", "b/doc.json", "top.json"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	all, err := f.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("List(\"\") = %v, want 4 entries", all)
	}
}

func TestRead_MissingFile(t *testing.T) {
	f, _ := newTestFS(t)
	if _, err := f.Read("absent.md"); err == nil {
		t.Error("expected error for missing file")
	}
	if f.Exists("absent.md") {
		t.Error("Exists = true for missing file")
	}
}
