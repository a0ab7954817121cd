package bbcode

import (
	"testing"

	"github.com/starford/runeport/internal/models"
)

func TestTranslate_NestedBoldItalic(t *testing.T) {
	got, warnings := Translate("[b]Hello [i]World[/i][/b]")
	if got != "**Hello *World***" {
		t.Errorf("got %q, want %q", got, "**Hello *World***")
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestTranslate_Headings(t *testing.T) {
	got, _ := Translate("[h1]Title[/h1]\n[h3]Sub[/h3]")
	want := "# Title\n### Sub"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_URL(t *testing.T) {
	got, _ := Translate("see [url]https://example.com/map[/url] now")
	want := "see [https://example.com/map](https://example.com/map) now"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_Quote(t *testing.T) {
	got, _ := Translate("[quote]first\nsecond[/quote]")
	want := "> first\n> second"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_Code(t *testing.T) {
	got, _ := Translate("[code]x := 1[/code]")
	want := "```\nx := 1\n```"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_ListItems(t *testing.T) {
	got, _ := Translate("[ul][*]apples[*]pears[/ul]")
	want := "* apples\n* pears\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_ItemBreakOutsideListIsLiteral(t *testing.T) {
	got, _ := Translate("stray [*] marker")
	if got != "stray [*] marker" {
		t.Errorf("got %q", got)
	}
}

func TestTranslate_UnmatchedCloseLeftLiteral(t *testing.T) {
	got, warnings := Translate("plain [/b] text")
	if got != "plain [/b] text" {
		t.Errorf("got %q", got)
	}
	if len(warnings) != 1 || warnings[0].Kind != models.WarnMalformedMarkup {
		t.Errorf("warnings = %v, want one malformed-markup warning", warnings)
	}
}

func TestTranslate_UnclosedOpenLeftLiteral(t *testing.T) {
	got, warnings := Translate("[b]bold forever")
	if got != "[b]bold forever" {
		t.Errorf("got %q", got)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one", warnings)
	}
}

func TestTranslate_InterleavedMarkersKeepContent(t *testing.T) {
	got, warnings := Translate("[b]one [i]two[/b] three[/i]")
	// [i] loses its pairing when [/b] closes across it, then [/i] has no
	// match either. Both stay literal; no prose is dropped.
	want := "**one [i]two** three[/i]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want two", warnings)
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	inputs := []string{
		"[b]Hello [i]World[/i][/b]",
		"[h2]Heading[/h2] body [url]https://x.test[/url]",
		"[ul][*]a[*]b[/ul]",
	}
	for _, in := range inputs {
		once, _ := Translate(in)
		twice, _ := Translate(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestTranslate_WhitespaceCleanup(t *testing.T) {
	got, _ := Translate("too    many\tspaces\n   [h2]Indented[/h2]")
	want := "too many spaces\n## Indented"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTranslate_LineBreakMarker(t *testing.T) {
	got, _ := Translate("one[br]two")
	if got != "one\ntwo" {
		t.Errorf("got %q", got)
	}
}
