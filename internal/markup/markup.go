// Package markup extracts named content tags from export document bodies.
//
// The export dialect wraps regions of prose in angle-bracket tags, e.g.
// <description>intro <secret>hidden</secret> outro</description>. Tags nest
// arbitrarily, so matching is done with a stack rather than regular
// expressions: each close marker pairs with the nearest unmatched open
// marker of the same name.
package markup

import (
	"sort"
	"strings"

	"github.com/starford/runeport/internal/models"
)

// Span is a named region of text found inside a document body. Inner is the
// text between the paired markers exactly as written, including any nested
// tags, unresolved.
type Span struct {
	Name  string
	Inner string
	Start int // offset of the open marker
	Depth int // nesting depth relative to other recognized tags
	// Closed is false when the close marker was missing and the span was
	// extended to the end of the document.
	Closed bool
}

// marker is one recognized open or close tag occurrence in the body.
type marker struct {
	name    string
	start   int // offset of '<'
	end     int // offset just past '>'
	closing bool
}

// pair is a matched open/close marker couple. close indexes are -1 for a
// span that ran to end-of-document.
type pair struct {
	name                 string
	openStart, openEnd   int
	closeStart, closeEnd int
	depth                int
}

// matchResult holds everything one balanced-matching pass produces.
type matchResult struct {
	pairs    []pair
	orphans  []marker // markers left literal: interleaved opens, stray closes
	warnings []models.Warning
}

// Extract scans body for the given tag names and returns their spans in
// document order, together with any data-quality warnings. Unknown tags are
// not scanned for and pass through untouched in the body.
func Extract(body string, names []string) ([]Span, []models.Warning) {
	res := match(body, names)

	spans := make([]Span, 0, len(res.pairs))
	for _, p := range res.pairs {
		sp := Span{Name: p.name, Start: p.openStart, Depth: p.depth, Closed: p.closeStart >= 0}
		if sp.Closed {
			sp.Inner = body[p.openEnd:p.closeStart]
		} else {
			sp.Inner = body[p.openEnd:]
		}
		spans = append(spans, sp)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, res.warnings
}

// match runs the stack matcher over body for the given tag names.
//
// Malformed input policy: an improperly interleaved close (one that matches
// an open deeper in the stack than the top) abandons the intervening opens,
// leaving their markers literal in the body, and raises a warning. A close with
// no matching open stays literal. Opens still on the stack at end-of-document
// become to-EOF pairs and raise a warning each.
func match(body string, names []string) matchResult {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = struct{}{}
	}

	var res matchResult
	var stack []marker

	pos := 0
	for {
		m, ok := nextMarker(body, pos, want)
		if !ok {
			break
		}
		pos = m.end

		if !m.closing {
			stack = append(stack, m)
			continue
		}

		// Find the nearest unmatched open of the same name.
		idx := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].name == m.name {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Stray close: leave literal.
			res.orphans = append(res.orphans, m)
			continue
		}
		if idx != len(stack)-1 {
			// Interleaved tags, e.g. <a><b></a></b>. The opens between the
			// match and the top cannot nest properly; leave them literal.
			for _, abandoned := range stack[idx+1:] {
				res.orphans = append(res.orphans, abandoned)
			}
			res.warnings = append(res.warnings, models.Warnf(models.WarnMalformedMarkup,
				"interleaved tags near offset %d: <%s> closed while <%s> still open",
				m.start, m.name, stack[len(stack)-1].name))
		}
		open := stack[idx]
		stack = stack[:idx]
		res.pairs = append(res.pairs, pair{
			name:      open.name,
			openStart: open.start, openEnd: open.end,
			closeStart: m.start, closeEnd: m.end,
			depth: idx,
		})
	}

	// Unclosed opens extend to end-of-document.
	for i, open := range stack {
		res.warnings = append(res.warnings, models.Warnf(models.WarnMalformedMarkup,
			"tag <%s> at offset %d not closed before end of document", open.name, open.start))
		res.pairs = append(res.pairs, pair{
			name:      open.name,
			openStart: open.start, openEnd: open.end,
			closeStart: -1, closeEnd: -1,
			depth: i,
		})
	}

	return res
}

// nextMarker finds the next recognized tag marker at or after pos.
func nextMarker(body string, pos int, want map[string]struct{}) (marker, bool) {
	for i := pos; i < len(body); i++ {
		if body[i] != '<' {
			continue
		}
		j := i + 1
		closing := false
		if j < len(body) && body[j] == '/' {
			closing = true
			j++
		}
		k := j
		for k < len(body) && isNameChar(body[k]) {
			k++
		}
		if k == j || k >= len(body) || body[k] != '>' {
			continue
		}
		name := strings.ToLower(body[j:k])
		if _, ok := want[name]; !ok {
			continue
		}
		return marker{name: name, start: i, end: k + 1, closing: closing}, true
	}
	return marker{}, false
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

// Sectionize rewrites recognized tag markup in body for Markdown output.
// Content tags become headings: the open marker turns into an H2 (deeper
// nesting gets deeper headings, capped at H6) titled with the tag name, the
// close marker is removed. Tags listed only in metadata are unwrapped: both
// markers are removed and the prose kept. Malformed regions are left exactly
// as written.
func Sectionize(body string, contentTags, metadataTags []string) string {
	content := make(map[string]struct{}, len(contentTags))
	names := make([]string, 0, len(contentTags)+len(metadataTags))
	for _, n := range contentTags {
		content[strings.ToLower(n)] = struct{}{}
		names = append(names, n)
	}
	names = append(names, metadataTags...)

	res := match(body, names)

	// Collect marker replacements, then rebuild in one pass.
	type edit struct {
		start, end int
		text       string
	}
	var edits []edit
	for _, p := range res.pairs {
		closeText := ""
		if _, isContent := content[p.name]; isContent {
			level := min(2+p.depth, 6)
			heading := "\n" + strings.Repeat("#", level) + " " + TitleWords(p.name) + "\n\n"
			edits = append(edits, edit{p.openStart, p.openEnd, heading})
			closeText = "\n"
		} else {
			edits = append(edits, edit{p.openStart, p.openEnd, ""})
		}
		if p.closeStart >= 0 {
			edits = append(edits, edit{p.closeStart, p.closeEnd, closeText})
		}
	}
	if len(edits) == 0 {
		return body
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(body))
	pos := 0
	for _, e := range edits {
		b.WriteString(body[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(body[pos:])
	return b.String()
}

// StripTags removes all recognized tag markers from s, keeping inner text.
// Used to clean values before they land in front-matter.
func StripTags(s string, names []string) string {
	return Sectionize(s, nil, names)
}

// TitleWords renders a tag name as a section heading: underscores become
// spaces and each word is capitalized ("secret_history" -> "Secret History").
func TitleWords(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == ' ' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
