// Package source reads the export tree: one JSON envelope per document plus
// sibling image files.
package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-slug"

	"github.com/starford/runeport/internal/checksum"
	"github.com/starford/runeport/internal/models"
	"github.com/starford/runeport/internal/storage"
)

// flexString decodes a JSON string or number; export identifiers appear as
// both depending on export version.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(strings.NewReader(string(data)))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexString(t)
	case json.Number:
		*s = flexString(t.String())
	default:
		return fmt.Errorf("id must be a string or number, got %T", v)
	}
	return nil
}

// envelope is the on-disk JSON shape of one exported document.
type envelope struct {
	ID           flexString   `json:"id"`
	Title        string       `json:"title"`
	Template     string       `json:"template"`
	Content      string       `json:"content"`
	Images       []string     `json:"images"`
	Relations    relationList `json:"relations"`
	CreationDate struct {
		Date string `json:"date"`
	} `json:"creationDate"`
	World struct {
		Title string `json:"title"`
	} `json:"world"`
}

// relationList decodes the export's relations block. The block is a JSON
// object whose key order carries meaning for the reader, so it is walked
// token by token instead of through a map.
type relationList []models.Relation

func (r *relationList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// Documents without relations carry null or an empty array here.
		return nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var block struct {
			Items json.RawMessage `json:"items"`
		}
		if err := dec.Decode(&block); err != nil {
			return err
		}
		items := decodeRelationItems(block.Items)
		if key == "" || len(items) == 0 {
			continue
		}
		*r = append(*r, models.Relation{Name: key, Items: items})
	}
	return nil
}

// decodeRelationItems accepts both item shapes the export writes: a list of
// typed items, or a single bare item for one-to-one relations.
func decodeRelationItems(raw json.RawMessage) []models.RelationItem {
	type wireItem struct {
		RelationshipType string `json:"relationshipType"`
		Title            string `json:"title"`
	}
	var many []wireItem
	if err := json.Unmarshal(raw, &many); err == nil {
		var out []models.RelationItem
		for _, it := range many {
			if it.Title == "" {
				continue
			}
			out = append(out, models.RelationItem{
				Title:      it.Title,
				IsDocument: strings.EqualFold(it.RelationshipType, "article"),
			})
		}
		return out
	}
	var one wireItem
	if err := json.Unmarshal(raw, &one); err == nil && one.Title != "" {
		// One-to-one relations omit the type; they always point at documents.
		return []models.RelationItem{{Title: one.Title, IsDocument: true}}
	}
	return nil
}

// Loader reads source documents from an export tree.
type Loader struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewLoader creates a Loader over the given export tree.
func NewLoader(store storage.Provider, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load reads and decodes a single document file.
func (l *Loader) Load(path string) (*models.SourceDocument, error) {
	data, err := l.store.Read(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", path, err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("source: %s: missing document id", path)
	}
	return &models.SourceDocument{
		ID:        string(env.ID),
		Title:     env.Title,
		Template:  env.Template,
		Created:   env.CreationDate.Date,
		World:     env.World.Title,
		Body:      env.Content,
		Images:    env.Images,
		Relations: env.Relations,
		Path:      path,
		Checksum:  checksum.Sum(data),
	}, nil
}

// LoadAll walks the export tree and loads every .json document. Files that
// fail to decode are logged and returned in skipped; they do not abort the
// walk. A walk failure itself is fatal.
func (l *Loader) LoadAll() (docs []*models.SourceDocument, skipped []string, err error) {
	paths, err := l.store.List(".json")
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		doc, loadErr := l.Load(p)
		if loadErr != nil {
			l.logger.Warn("skipping unreadable document",
				slog.String("path", p), slog.String("error", loadErr.Error()))
			skipped = append(skipped, p)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

// DestPath derives the destination vault path for a document:
// <template>/<slug(title)>.md, or just <slug(title)>.md when flattening.
// Documents without a usable title fall back to their identifier.
func DestPath(doc *models.SourceDocument, flatten bool) string {
	name, err := slug.Normalize(doc.Title)
	if err != nil || name == "" {
		name = doc.ID
	}
	if flatten || doc.Template == "" {
		return name + ".md"
	}
	return doc.Template + "/" + name + ".md"
}
