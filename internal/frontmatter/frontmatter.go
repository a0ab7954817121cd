// Package frontmatter maps extracted tag spans onto an ordered front-matter
// block and renders it as YAML.
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/runeport/internal/markup"
	"github.com/starford/runeport/internal/models"
)

// Field maps one output front-matter key to source tag names searched in
// priority order. When no tag matches, the field is omitted unless Required,
// in which case Default is substituted.
type Field struct {
	Name     string   `yaml:"name"`
	Tags     []string `yaml:"tags"`
	Required bool     `yaml:"required"`
	Default  string   `yaml:"default"`
}

// KV is one ordered front-matter entry. Value is a string or []string.
type KV struct {
	Key   string
	Value any
}

// Build produces the ordered front-matter for a document: envelope fields
// first (matching the export's own metadata), then the configured mappings in
// configuration order. stripNames lists the tag names to scrub out of values
// so only plain text reaches the front-matter.
func Build(doc *models.SourceDocument, spans []markup.Span, fields []Field, stripNames []string) []KV {
	out := []KV{
		{Key: "id", Value: doc.ID},
		{Key: "title", Value: doc.Title},
		{Key: "template", Value: doc.Template},
	}
	if doc.Created != "" {
		out = append(out, KV{Key: "created", Value: doc.Created})
	}
	if doc.World != "" {
		out = append(out, KV{Key: "world", Value: doc.World})
	}

	byName := make(map[string][]string)
	for _, sp := range spans {
		name := strings.ToLower(sp.Name)
		v := cleanValue(sp.Inner, stripNames)
		if v == "" {
			continue
		}
		byName[name] = append(byName[name], v)
	}

	for _, f := range fields {
		var vals []string
		for _, tag := range f.Tags {
			if got := byName[strings.ToLower(tag)]; len(got) > 0 {
				vals = got
				break
			}
		}
		switch {
		case len(vals) == 1:
			out = append(out, KV{Key: f.Name, Value: vals[0]})
		case len(vals) > 1:
			out = append(out, KV{Key: f.Name, Value: vals})
		case f.Required:
			out = append(out, KV{Key: f.Name, Value: f.Default})
		}
	}

	return out
}

// cleanValue strips leftover tag markup and squeezes whitespace so the value
// is a plain scalar.
func cleanValue(s string, stripNames []string) string {
	s = markup.StripTags(s, stripNames)
	return strings.Join(strings.Fields(s), " ")
}

// Render marshals the block between --- delimiters. Emission goes through a
// yaml mapping node so key order is preserved and values that would break the
// block's own syntax (colons, quotes) are escaped by the encoder.
func Render(kvs []KV) ([]byte, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range kvs {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: kv.Key}
		var val *yaml.Node
		switch v := kv.Value.(type) {
		case string:
			val = &yaml.Node{Kind: yaml.ScalarNode, Value: v}
		case []string:
			val = &yaml.Node{Kind: yaml.SequenceNode}
			for _, item := range v {
				val.Content = append(val.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
			}
		default:
			return nil, fmt.Errorf("frontmatter: unsupported value type %T for %q", kv.Value, kv.Key)
		}
		node.Content = append(node.Content, key, val)
	}

	body, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(body)
	b.WriteString("---\n\n")
	return []byte(b.String()), nil
}
