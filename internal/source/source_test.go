package source

import (
	"testing"

	"github.com/starford/runeport/internal/models"
	"github.com/starford/runeport/internal/testutil"
)

func TestLoad_Envelope(t *testing.T) {
	_, store := testutil.TestTree(t)
	testutil.WriteDoc(t, store, "Locations/lair.json", map[string]any{
		"id":       "42",
		"title":    "Dragon's Lair",
		"template": "Locations",
		"content":  "<description>deep</description>",
		"images":   []string{"lair.jpg"},
		"creationDate": map[string]any{
			"date": "2023-04-01",
		},
		"world": map[string]any{
			"title": "Eldoria",
		},
	})

	l := NewLoader(store, testutil.DiscardLogger())
	doc, err := l.Load("Locations/lair.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "42" || doc.Title != "Dragon's Lair" || doc.Template != "Locations" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Created != "2023-04-01" || doc.World != "Eldoria" {
		t.Errorf("created = %q, world = %q", doc.Created, doc.World)
	}
	if len(doc.Images) != 1 || doc.Images[0] != "lair.jpg" {
		t.Errorf("images = %v", doc.Images)
	}
	if doc.Checksum == "" {
		t.Error("checksum not populated")
	}
}

func TestLoad_NumericID(t *testing.T) {
	_, store := testutil.TestTree(t)
	if err := store.Write("doc.json", []byte(`{"id": 42, "title": "T"}`)); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(store, testutil.DiscardLogger())
	doc, err := l.Load("doc.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "42" {
		t.Errorf("id = %q, want 42", doc.ID)
	}
}

func TestLoad_Relations(t *testing.T) {
	_, store := testutil.TestTree(t)
	// Raw JSON keeps the block order the export wrote.
	raw := `{
		"id": "42",
		"title": "Dragon's Lair",
		"relations": {
			"parent_location": {
				"items": [
					{"relationshipType": "article", "title": "The Vale"},
					{"relationshipType": "category", "title": "Caves"}
				]
			},
			"ruler": {
				"items": {"title": "King Aldric"}
			},
			"empty_block": {"items": []}
		}
	}`
	if err := store.Write("lair.json", []byte(raw)); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(store, testutil.DiscardLogger())
	doc, err := l.Load("lair.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Relations) != 2 {
		t.Fatalf("relations = %+v, want 2 blocks", doc.Relations)
	}
	if doc.Relations[0].Name != "parent_location" || doc.Relations[1].Name != "ruler" {
		t.Errorf("block order = %q, %q", doc.Relations[0].Name, doc.Relations[1].Name)
	}
	items := doc.Relations[0].Items
	if len(items) != 2 || !items[0].IsDocument || items[0].Title != "The Vale" {
		t.Errorf("items = %+v", items)
	}
	if items[1].IsDocument {
		t.Error("non-article item marked as document")
	}
	ruler := doc.Relations[1].Items
	if len(ruler) != 1 || !ruler[0].IsDocument || ruler[0].Title != "King Aldric" {
		t.Errorf("ruler = %+v", ruler)
	}
}

func TestLoad_RelationsAbsent(t *testing.T) {
	_, store := testutil.TestTree(t)
	if err := store.Write("doc.json", []byte(`{"id": "1", "relations": null}`)); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(store, testutil.DiscardLogger())
	doc, err := l.Load("doc.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Relations) != 0 {
		t.Errorf("relations = %+v, want none", doc.Relations)
	}
}

func TestLoad_MissingID(t *testing.T) {
	_, store := testutil.TestTree(t)
	if err := store.Write("doc.json", []byte(`{"title": "No ID"}`)); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(store, testutil.DiscardLogger())
	if _, err := l.Load("doc.json"); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestLoadAll_SkipsBrokenFiles(t *testing.T) {
	_, store := testutil.TestTree(t)
	testutil.WriteDoc(t, store, "good.json", testutil.Envelope("1", "Good", "Notes", "body"))
	if err := store.Write("bad.json", []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(store, testutil.DiscardLogger())
	docs, skipped, err := l.LoadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "1" {
		t.Errorf("docs = %+v", docs)
	}
	if len(skipped) != 1 || skipped[0] != "bad.json" {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestDestPath(t *testing.T) {
	doc := &models.SourceDocument{ID: "42", Title: "Dragon's Lair", Template: "Locations"}
	if got := DestPath(doc, false); got != "Locations/dragons-lair.md" {
		t.Errorf("got %q", got)
	}
	if got := DestPath(doc, true); got != "dragons-lair.md" {
		t.Errorf("flattened = %q", got)
	}

	noTitle := &models.SourceDocument{ID: "99", Template: "Notes"}
	if got := DestPath(noTitle, false); got != "Notes/99.md" {
		t.Errorf("fallback = %q", got)
	}
}

func TestAssetLocator(t *testing.T) {
	loc := NewAssetLocator([]string{
		"Locations/lair.json",
		"uploads/images/map.jpg",
		"uploads/images/deep/map.jpg",
		"art/banner.png",
	})

	// Exact relative path, with or without a leading slash.
	if p, ok := loc.Locate("art/banner.png"); !ok || p != "art/banner.png" {
		t.Errorf("got %q %v", p, ok)
	}
	if p, ok := loc.Locate("/art/banner.png"); !ok || p != "art/banner.png" {
		t.Errorf("got %q %v", p, ok)
	}

	// Basename match breaks ties lexicographically.
	if p, ok := loc.Locate("/uploads/images/map.jpg?v=3"); !ok || p != "uploads/images/deep/map.jpg" {
		t.Errorf("got %q %v", p, ok)
	}

	// Document files are not assets.
	if _, ok := loc.Locate("Locations/lair.json"); ok {
		t.Error("json file located as asset")
	}

	if _, ok := loc.Locate("missing.gif"); ok {
		t.Error("missing file located")
	}
}
