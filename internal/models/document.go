// Package models defines the domain types for Runeport.
package models

// SourceDocument represents one exported entity read from the source tree.
// It is immutable once loaded and scoped to a single conversion run.
type SourceDocument struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Template string   `json:"template"`
	Created  string   `json:"created,omitempty"`
	World    string   `json:"world,omitempty"`
	Body     string   `json:"body"`
	Images   []string `json:"images,omitempty"`

	// Relations preserve the envelope's block order so output is stable
	// across runs.
	Relations []Relation `json:"relations,omitempty"`

	// Path is the source file location relative to the export root.
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// Relation groups related documents under one export-defined key, such as
// "parent_location" or "ruling_organization".
type Relation struct {
	Name  string         `json:"name"`
	Items []RelationItem `json:"items"`
}

// RelationItem is one related document. IsDocument marks items the export
// types as articles; those render as links rather than plain titles.
type RelationItem struct {
	Title      string `json:"title"`
	IsDocument bool   `json:"is_document"`
}
