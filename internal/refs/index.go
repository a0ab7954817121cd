// Package refs resolves in-text document references to wiki-links.
//
// The export writes cross-references as @[Label](target), where target is a
// document identifier or a raw title. Resolution goes against an index built
// from every document in the export before any conversion starts, so results
// do not depend on conversion order.
package refs

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Entry is one resolvable document.
type Entry struct {
	ID    string
	Title string
	Path  string // destination path relative to the vault root, with extension
}

// Collision records two documents whose titles normalize identically.
type Collision struct {
	Title     string // normalized form
	KeptID    string
	DroppedID string
}

// Index maps identifiers and normalized titles to destination entries.
// Built once per run; read-only during conversion.
type Index struct {
	byID       map[string]Entry
	byTitle    map[string]Entry
	titles     []string // normalized, kept sorted for stable suggestions
	collisions []Collision
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byID:    make(map[string]Entry),
		byTitle: make(map[string]Entry),
	}
}

// Add registers a document. Identifier mappings are unique by construction
// (one document per id). When two documents normalize to the same title, the
// first one added (traversal order) keeps the title mapping and the collision
// is recorded; the later document stays reachable by identifier only.
func (x *Index) Add(e Entry) {
	x.byID[e.ID] = e

	norm := NormalizeTitle(e.Title)
	if norm == "" {
		return
	}
	if prev, taken := x.byTitle[norm]; taken {
		x.collisions = append(x.collisions, Collision{Title: norm, KeptID: prev.ID, DroppedID: e.ID})
		return
	}
	x.byTitle[norm] = e

	// Insert in sorted position so Suggest never has to reorder the slice;
	// conversion workers share the index and only ever read it.
	i := sort.SearchStrings(x.titles, norm)
	x.titles = append(x.titles, "")
	copy(x.titles[i+1:], x.titles[i:])
	x.titles[i] = norm
}

// Lookup resolves a reference target: exact identifier match first, then
// normalized title.
func (x *Index) Lookup(target string) (Entry, bool) {
	if e, ok := x.byID[target]; ok {
		return e, true
	}
	if e, ok := x.byTitle[NormalizeTitle(target)]; ok {
		return e, true
	}
	return Entry{}, false
}

// Collisions returns the title collisions recorded while building the index.
func (x *Index) Collisions() []Collision {
	return x.collisions
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	return len(x.byID)
}

// Suggest returns the indexed title nearest to target by Levenshtein
// distance, when it is close enough to plausibly be a typo. Ties break
// lexicographically so suggestions are stable across runs.
func (x *Index) Suggest(target string) (Entry, bool) {
	norm := NormalizeTitle(target)
	if norm == "" || len(x.titles) == 0 {
		return Entry{}, false
	}

	best := ""
	bestDist := -1
	for _, t := range x.titles {
		d := levenshtein.Distance(norm, t, nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = t, d
		}
	}
	// Allow roughly one edit per four characters, at least two.
	limit := max(2, len(norm)/4)
	if bestDist > limit {
		return Entry{}, false
	}
	return x.byTitle[best], true
}

// NormalizeTitle lowercases and collapses whitespace so title lookups
// tolerate casing and spacing differences.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
