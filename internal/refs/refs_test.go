package refs

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/starford/runeport/internal/models"
)

func testIndex() *Index {
	idx := NewIndex()
	idx.Add(Entry{ID: "42", Title: "Dragon's Lair", Path: "Locations/dragons-lair.md"})
	idx.Add(Entry{ID: "7", Title: "King Aldric", Path: "Characters/king-aldric.md"})
	idx.Add(Entry{ID: "13", Title: "Silver Road", Path: "Locations/silver-road.md"})
	return idx
}

func TestLookup_ByID(t *testing.T) {
	idx := testIndex()
	e, ok := idx.Lookup("42")
	if !ok {
		t.Fatal("lookup by id failed")
	}
	if e.Path != "Locations/dragons-lair.md" {
		t.Errorf("path = %q", e.Path)
	}
}

func TestLookup_ByTitleNormalized(t *testing.T) {
	idx := testIndex()
	e, ok := idx.Lookup("  dragon's   LAIR ")
	if !ok {
		t.Fatal("lookup by normalized title failed")
	}
	if e.ID != "42" {
		t.Errorf("id = %q, want 42", e.ID)
	}
}

func TestAdd_TitleCollisionFirstWins(t *testing.T) {
	idx := NewIndex()
	idx.Add(Entry{ID: "1", Title: "The Vale", Path: "Locations/the-vale.md"})
	idx.Add(Entry{ID: "2", Title: "the  vale", Path: "Locations/the-vale-2.md"})

	e, ok := idx.Lookup("The Vale")
	if !ok || e.ID != "1" {
		t.Errorf("title lookup = %+v, want id 1", e)
	}
	// The later document stays reachable by identifier.
	if e, ok := idx.Lookup("2"); !ok || e.Path != "Locations/the-vale-2.md" {
		t.Errorf("id lookup = %+v", e)
	}
	cols := idx.Collisions()
	if len(cols) != 1 {
		t.Fatalf("collisions = %v, want 1", cols)
	}
	if cols[0].KeptID != "1" || cols[0].DroppedID != "2" {
		t.Errorf("collision = %+v", cols[0])
	}
}

func TestAdd_CollisionOrderIndependentOfLateAdds(t *testing.T) {
	// Whatever is added first keeps the title, regardless of id values.
	idx := NewIndex()
	idx.Add(Entry{ID: "9", Title: "Mirror Sea", Path: "a.md"})
	idx.Add(Entry{ID: "3", Title: "Mirror Sea", Path: "b.md"})
	if e, _ := idx.Lookup("Mirror Sea"); e.ID != "9" {
		t.Errorf("kept id = %q, want 9", e.ID)
	}
}

func TestWikiLink(t *testing.T) {
	e := Entry{ID: "42", Title: "Dragon's Lair", Path: "Locations/dragons-lair.md"}
	if got := WikiLink(e, "the lair"); got != "[[Locations/dragons-lair|the lair]]" {
		t.Errorf("got %q", got)
	}
	if got := WikiLink(e, ""); got != "[[Locations/dragons-lair|Dragon's Lair]]" {
		t.Errorf("got %q", got)
	}
}

func TestResolve_MarkersBecomeWikiLinks(t *testing.T) {
	idx := testIndex()
	body := "Seek @[the lair](42) along the @[Silver Road](Silver Road)."
	out, found, warnings := Resolve(body, idx)
	want := "Seek [[Locations/dragons-lair|the lair]] along the [[Locations/silver-road|Silver Road]]."
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if len(found) != 2 || found[0].Path == "" || found[1].Path == "" {
		t.Errorf("found = %+v", found)
	}
}

func TestResolve_FallsBackToLabelLookup(t *testing.T) {
	idx := testIndex()
	out, _, warnings := Resolve("meet @[King Aldric](https://export.example/7)", idx)
	if out != "meet [[Characters/king-aldric|King Aldric]]" {
		t.Errorf("got %q", out)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestResolve_UnresolvedDegradesToLabel(t *testing.T) {
	idx := testIndex()
	out, found, warnings := Resolve("ask @[the hermit](999)", idx)
	if out != "ask the hermit" {
		t.Errorf("got %q", out)
	}
	if strings.Contains(out, "[[") {
		t.Errorf("broken link syntax leaked into %q", out)
	}
	if len(warnings) != 1 || warnings[0].Kind != models.WarnUnresolvedReference {
		t.Fatalf("warnings = %v", warnings)
	}
	if len(found) != 1 || found[0].Path != "" {
		t.Errorf("found = %+v", found)
	}
}

func TestResolve_UnresolvedSuggestsNearTitle(t *testing.T) {
	idx := testIndex()
	_, _, warnings := Resolve("see @[Silver Raod](Silver Raod)", idx)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !strings.Contains(warnings[0].Detail, "Silver Road") {
		t.Errorf("detail = %q, want suggestion of Silver Road", warnings[0].Detail)
	}
}

func TestResolve_SelfReference(t *testing.T) {
	idx := testIndex()
	out, _, _ := Resolve("@[Dragon's Lair](42)", idx)
	if out != "[[Locations/dragons-lair|Dragon's Lair]]" {
		t.Errorf("got %q", out)
	}
}

func TestSuggest_RejectsDistantTitles(t *testing.T) {
	idx := testIndex()
	if _, ok := idx.Suggest("zzzzzzzzzz"); ok {
		t.Error("expected no suggestion for distant input")
	}
}

func TestResolve_ConcurrentUnresolvedLookups(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 200; i++ {
		idx.Add(Entry{
			ID:    fmt.Sprintf("%d", i),
			Title: fmt.Sprintf("Title %03d", i),
			Path:  fmt.Sprintf("Notes/title-%03d.md", i),
		})
	}

	// Unresolved markers take the suggestion path; the index must stay
	// read-only so parallel conversion workers can share it.
	results := make([]string, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, warns := Resolve("see @[Titl 042](no-such-id)", idx)
			if len(warns) != 1 {
				t.Errorf("warnings = %d, want 1", len(warns))
			}
			results[i] = out
		}()
	}
	wg.Wait()

	for i, got := range results {
		if got != results[0] {
			t.Errorf("result %d = %q, want %q", i, got, results[0])
		}
	}
	if !strings.Contains(results[0], "Titl 042") || strings.Contains(results[0], "[[") {
		t.Errorf("unresolved marker did not degrade to label: %q", results[0])
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  The   GREAT  Wood "); got != "the great wood" {
		t.Errorf("got %q", got)
	}
}
