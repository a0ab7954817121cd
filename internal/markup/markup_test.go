package markup

import (
	"strings"
	"testing"

	"github.com/starford/runeport/internal/models"
)

func TestExtract_Nested(t *testing.T) {
	body := "<description>intro <secret>hidden</secret> outro</description>"
	spans, warnings := Extract(body, []string{"description", "secret"})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[0].Name != "description" {
		t.Errorf("spans[0].Name = %q, want %q", spans[0].Name, "description")
	}
	if spans[0].Inner != "intro <secret>hidden</secret> outro" {
		t.Errorf("spans[0].Inner = %q", spans[0].Inner)
	}
	if spans[0].Depth != 0 {
		t.Errorf("spans[0].Depth = %d, want 0", spans[0].Depth)
	}
	if spans[1].Name != "secret" || spans[1].Inner != "hidden" {
		t.Errorf("spans[1] = %+v", spans[1])
	}
	if spans[1].Depth != 1 {
		t.Errorf("spans[1].Depth = %d, want 1", spans[1].Depth)
	}
}

func TestExtract_UnknownTagsUntouched(t *testing.T) {
	body := "before <other>kept</other> after"
	spans, warnings := Extract(body, []string{"description"})
	if len(spans) != 0 {
		t.Errorf("spans = %v, want none", spans)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestExtract_UnclosedRunsToEOF(t *testing.T) {
	body := "<description>no end in sight"
	spans, warnings := Extract(body, []string{"description"})
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if spans[0].Closed {
		t.Error("span reported closed")
	}
	if spans[0].Inner != "no end in sight" {
		t.Errorf("Inner = %q", spans[0].Inner)
	}
	if len(warnings) != 1 || warnings[0].Kind != models.WarnMalformedMarkup {
		t.Errorf("warnings = %v, want one malformed-markup warning", warnings)
	}
}

func TestExtract_StrayCloseLeftLiteral(t *testing.T) {
	body := "text </description> more"
	spans, warnings := Extract(body, []string{"description"})
	if len(spans) != 0 {
		t.Errorf("spans = %v, want none", spans)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestExtract_Interleaved(t *testing.T) {
	body := "<a>one <b>two</a> three</b>"
	spans, warnings := Extract(body, []string{"a", "b"})
	// <b> is abandoned when </a> closes across it; only <a> pairs.
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1: %+v", len(spans), spans)
	}
	if spans[0].Name != "a" || spans[0].Inner != "one <b>two" {
		t.Errorf("spans[0] = %+v", spans[0])
	}
	if len(warnings) != 1 || warnings[0].Kind != models.WarnMalformedMarkup {
		t.Errorf("warnings = %v, want one malformed-markup warning", warnings)
	}
}

func TestExtract_CaseInsensitiveNames(t *testing.T) {
	body := "<Description>Body</DESCRIPTION>"
	spans, _ := Extract(body, []string{"description"})
	if len(spans) != 1 || spans[0].Inner != "Body" {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestSectionize_ContentTagBecomesHeading(t *testing.T) {
	body := "<description>The town sits on a cliff.</description>"
	got := Sectionize(body, []string{"description"}, nil)
	want := "\n## Description\n\nThe town sits on a cliff.\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSectionize_NestedHeadingLevels(t *testing.T) {
	body := "<history>old <secret_history>hidden</secret_history></history>"
	got := Sectionize(body, []string{"history", "secret_history"}, nil)
	if !strings.Contains(got, "\n## History\n\n") {
		t.Errorf("missing H2 heading: %q", got)
	}
	if !strings.Contains(got, "\n### Secret History\n\n") {
		t.Errorf("missing H3 heading: %q", got)
	}
	if strings.Contains(got, "<") {
		t.Errorf("markers left behind: %q", got)
	}
}

func TestSectionize_MetadataTagUnwrapped(t *testing.T) {
	body := "x <pop>4,000</pop> y"
	got := Sectionize(body, nil, []string{"pop"})
	want := "x 4,000 y"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSectionize_MalformedLeftAsWritten(t *testing.T) {
	body := "a </pop> b"
	got := Sectionize(body, nil, []string{"pop"})
	if got != body {
		t.Errorf("got %q, want unchanged %q", got, body)
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags("<terrain>rolling <hills>green</hills></terrain>", []string{"terrain", "hills"})
	want := "rolling green"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTitleWords(t *testing.T) {
	cases := map[string]string{
		"secret_history": "Secret History",
		"description":    "Description",
		"rule-of-law":    "Rule Of Law",
	}
	for in, want := range cases {
		if got := TitleWords(in); got != want {
			t.Errorf("TitleWords(%q) = %q, want %q", in, got, want)
		}
	}
}
