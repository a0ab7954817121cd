package source

import (
	"path"
	"sort"
	"strings"
)

// AssetLocator finds image files in the export tree by the references that
// appear in document bodies. References arrive either as tree-relative paths
// or as export-side URL paths (e.g. /uploads/images/abc.jpg) whose basename
// matches a sibling file.
type AssetLocator struct {
	byPath map[string]struct{}
	byBase map[string][]string
}

// NewAssetLocator indexes every non-document file in the export tree.
func NewAssetLocator(paths []string) *AssetLocator {
	loc := &AssetLocator{
		byPath: make(map[string]struct{}),
		byBase: make(map[string][]string),
	}
	for _, p := range paths {
		if strings.EqualFold(path.Ext(p), ".json") {
			continue
		}
		loc.byPath[p] = struct{}{}
		base := path.Base(p)
		loc.byBase[base] = append(loc.byBase[base], p)
	}
	// Deterministic basename resolution regardless of walk order.
	for base := range loc.byBase {
		sort.Strings(loc.byBase[base])
	}
	return loc
}

// Locate maps a raw reference to a tree-relative file path. Exact relative
// path first, then basename; when several files share a basename the
// lexicographically first wins.
func (a *AssetLocator) Locate(ref string) (string, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(ref), "/")
	if _, ok := a.byPath[trimmed]; ok {
		return trimmed, true
	}
	base := path.Base(strings.TrimSuffix(trimmed, "/"))
	// Drop any query string carried over from an export URL.
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if candidates := a.byBase[base]; len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}
