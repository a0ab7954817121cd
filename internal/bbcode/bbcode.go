// Package bbcode translates BBCode formatting markers into Markdown.
//
// Matching is stack-based: each close marker pairs with the nearest unmatched
// open marker of the same kind, so nested pairs ([b]Hello [i]World[/i][/b])
// convert correctly where global find/replace would corrupt them. The pass is
// best-effort: unmatched or interleaved markers stay as literal text and are
// reported as warnings, never dropped. Running the translator over its own
// output is a no-op because converted text carries no BBCode markers of a
// known kind.
package bbcode

import (
	"regexp"
	"strings"

	"github.com/starford/runeport/internal/models"
)

// known marker kinds. [br] and [*] are standalone; everything else pairs.
var paired = map[string]struct{}{
	"b": {}, "i": {}, "u": {}, "s": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {},
	"p": {}, "url": {}, "quote": {}, "code": {},
	"sup": {}, "sub": {},
	"list": {}, "ol": {}, "ul": {}, "li": {},
}

var (
	collapseRe   = regexp.MustCompile(`[ \t]+`)
	headIndentRe = regexp.MustCompile(`\n +(\[h\d\])`)
)

// node is either literal text (elem == "") or an element with children.
type node struct {
	text     string
	elem     string
	raw      string // the open marker as written, for literal fallback
	children []*node
}

// Translate rewrites recognized BBCode in text to Markdown and returns the
// result with any data-quality warnings.
func Translate(text string) (string, []models.Warning) {
	// Whitespace cleanup carried over from the export format: collapse runs
	// of spaces/tabs and strip indentation before headings.
	text = strings.ReplaceAll(text, "\r\n\r", "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = collapseRe.ReplaceAllString(text, " ")
	text = headIndentRe.ReplaceAllString(text, "\n$1")

	root, warnings := parse(text)
	return render(root), warnings
}

// parse builds a node tree from text using stack matching.
func parse(text string) (*node, []models.Warning) {
	root := &node{}
	stack := []*node{root}
	var warnings []models.Warning

	appendText := func(s string) {
		if s == "" {
			return
		}
		top := stack[len(stack)-1]
		top.children = append(top.children, &node{text: s})
	}

	pos := 0
	for pos < len(text) {
		i := strings.IndexByte(text[pos:], '[')
		if i < 0 {
			appendText(text[pos:])
			break
		}
		i += pos
		appendText(text[pos:i])

		name, closing, end, ok := scanMarker(text, i)
		if !ok {
			appendText(text[i : i+1])
			pos = i + 1
			continue
		}
		raw := text[i:end]
		pos = end

		switch {
		case name == "br":
			appendText("\n")

		case name == "*":
			// Item break; meaningful only inside a list element.
			top := stack[len(stack)-1]
			top.children = append(top.children, &node{elem: "*", raw: raw})

		case !closing:
			el := &node{elem: name, raw: raw}
			top := stack[len(stack)-1]
			top.children = append(top.children, el)
			stack = append(stack, el)

		default: // closing
			// Match the nearest unmatched open of the same kind.
			idx := -1
			for si := len(stack) - 1; si >= 1; si-- {
				if stack[si].elem == name {
					idx = si
					break
				}
			}
			if idx < 0 {
				// Stray close: leave the marker literal.
				warnings = append(warnings, models.Warnf(models.WarnMalformedMarkup,
					"unmatched BBCode close marker %s at offset %d", raw, i))
				appendText(raw)
				continue
			}
			// Interleaved opens above the match lose their pairing and stay
			// literal; their content is kept in place.
			for si := len(stack) - 1; si > idx; si-- {
				warnings = append(warnings, models.Warnf(models.WarnMalformedMarkup,
					"interleaved BBCode marker %s left as literal text", stack[si].raw))
				demote(stack[si])
			}
			stack = stack[:idx]
		}
	}

	// Unclosed elements: demote to literal open marker, content kept.
	for len(stack) > 1 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		warnings = append(warnings, models.Warnf(models.WarnMalformedMarkup,
			"unclosed BBCode marker %s", el.raw))
		demote(el)
	}

	return root, warnings
}

// demote turns an element node back into plain content: its open marker
// becomes literal text and its children render unchanged.
func demote(el *node) {
	el.children = append([]*node{{text: el.raw}}, el.children...)
	el.elem = ""
}

// scanMarker parses a [name] or [/name] or [*] marker starting at offset i.
// Only markers of known kinds are recognized; anything else stays literal.
func scanMarker(text string, i int) (name string, closing bool, end int, ok bool) {
	j := i + 1
	if j < len(text) && text[j] == '*' && j+1 < len(text) && text[j+1] == ']' {
		return "*", false, j + 2, true
	}
	if j < len(text) && text[j] == '/' {
		closing = true
		j++
	}
	k := j
	for k < len(text) && (text[k] >= 'a' && text[k] <= 'z' || text[k] >= 'A' && text[k] <= 'Z' || text[k] >= '0' && text[k] <= '9') {
		k++
	}
	if k == j || k >= len(text) || text[k] != ']' {
		return "", false, 0, false
	}
	name = strings.ToLower(text[j:k])
	if name != "br" {
		if _, known := paired[name]; !known {
			return "", false, 0, false
		}
	}
	return name, closing, k + 1, true
}

// render walks the tree emitting Markdown.
func render(n *node) string {
	if n.elem == "" && n.children == nil {
		return n.text
	}

	inner := func() string {
		var b strings.Builder
		for _, c := range n.children {
			b.WriteString(render(c))
		}
		return b.String()
	}

	switch n.elem {
	case "":
		return n.text + inner()
	case "b":
		return "**" + inner() + "**"
	case "i":
		return "*" + inner() + "*"
	case "u":
		return "<u>" + inner() + "</u>"
	case "s":
		return "~~" + inner() + "~~"
	case "sup":
		return "<sup>" + inner() + "</sup>"
	case "sub":
		return "<sub>" + inner() + "</sub>"
	case "h1", "h2", "h3", "h4":
		level := int(n.elem[1] - '0')
		return strings.Repeat("#", level) + " " + inner()
	case "p":
		return inner() + "\n"
	case "url":
		target := inner()
		return "[" + target + "](" + target + ")"
	case "code":
		return "```\n" + inner() + "\n```"
	case "quote":
		lines := strings.Split(inner(), "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case "list", "ol", "ul":
		return renderList(n.children)
	case "li":
		return "* " + inner()
	case "*":
		// Item break outside a list context: literal.
		return n.raw
	default:
		return n.raw + inner()
	}
}

// renderList splits children on [*] item breaks and emits one bullet per item.
func renderList(children []*node) string {
	var b strings.Builder
	var item strings.Builder
	flush := func() {
		s := strings.TrimSpace(item.String())
		if s != "" {
			b.WriteString("* " + s + "\n")
		}
		item.Reset()
	}
	for _, c := range children {
		if c.elem == "*" {
			flush()
			continue
		}
		item.WriteString(render(c))
	}
	flush()
	return b.String()
}
