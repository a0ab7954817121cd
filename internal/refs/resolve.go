package refs

import (
	"regexp"
	"strings"

	"github.com/starford/runeport/internal/models"
)

var refMarkerRe = regexp.MustCompile(`@\[([^\]]+)\]\(([^)]*)\)`)

// WikiLink renders the destination tool's internal link syntax for an entry,
// using label as the display text. The .md extension is dropped from the
// target, which is how the destination tool addresses vault files.
func WikiLink(e Entry, label string) string {
	target := strings.TrimSuffix(e.Path, ".md")
	if label == "" || label == e.Title {
		label = e.Title
	}
	return "[[" + target + "|" + label + "]]"
}

// Reference records one marker found in a body. Path is empty when the
// target was absent from the index.
type Reference struct {
	Target string
	Label  string
	Path   string
}

// Resolve rewrites every @[Label](target) marker in body. Resolvable targets
// become wiki-links; anything pointing outside the export degrades to the
// plain label text, never to broken link syntax. Resolution is a pure
// function of the index and the marker text.
func Resolve(body string, idx *Index) (string, []Reference, []models.Warning) {
	var found []Reference
	var warnings []models.Warning

	out := refMarkerRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := refMarkerRe.FindStringSubmatch(m)
		label, target := strings.TrimSpace(sub[1]), strings.TrimSpace(sub[2])

		e, ok := idx.Lookup(target)
		if !ok {
			// The label itself is often the title when the target is an
			// opaque export URL.
			e, ok = idx.Lookup(label)
		}
		if ok {
			found = append(found, Reference{Target: target, Label: label, Path: e.Path})
			return WikiLink(e, label)
		}

		w := models.Warnf(models.WarnUnresolvedReference,
			"reference %q (label %q) not found in export", target, label)
		if near, sok := idx.Suggest(target); sok {
			w.Detail += "; nearest title: " + near.Title
		} else if near, sok := idx.Suggest(label); sok {
			w.Detail += "; nearest title: " + near.Title
		}
		warnings = append(warnings, w)
		found = append(found, Reference{Target: target, Label: label})
		return label
	})

	return out, found, warnings
}
