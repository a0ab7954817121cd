package api

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/starford/runeport/internal/apperr"
	"github.com/starford/runeport/internal/catalog"
	"github.com/starford/runeport/internal/convert"
	"github.com/starford/runeport/internal/models"
	"github.com/starford/runeport/internal/storage"
)

// DocumentDetail is the full representation of a converted document.
type DocumentDetail struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Template  string           `json:"template"`
	DestPath  string           `json:"dest_path"`
	Content   string           `json:"content"`
	Warnings  []models.Warning `json:"warnings,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Template  string    `json:"template"`
	DestPath  string    `json:"dest_path"`
	Warnings  int       `json:"warnings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service exposes read-only views of the converted vault and run catalog.
type Service struct {
	vault storage.Provider
	cat   catalog.Catalog

	report atomic.Pointer[convert.Report]
}

// NewService creates a preview service over the destination vault.
func NewService(vault storage.Provider, cat catalog.Catalog) *Service {
	return &Service{vault: vault, cat: cat}
}

// SetReport records the most recent run report for the /report endpoint.
func (s *Service) SetReport(r *convert.Report) {
	s.report.Store(r)
}

// Report returns the most recent run report, or nil before the first run.
func (s *Service) Report() *convert.Report {
	return s.report.Load()
}

// GetDocument reads a converted document from the vault and enriches it with
// catalog metadata.
func (s *Service) GetDocument(_ context.Context, destPath string) (*DocumentDetail, error) {
	row, err := s.cat.GetDocument(destPath)
	if err != nil {
		return nil, err
	}
	data, err := s.vault.Read(destPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &DocumentDetail{
		ID:        row.ID,
		Title:     row.Title,
		Template:  row.Template,
		DestPath:  row.DestPath,
		Content:   string(data),
		Warnings:  row.Warnings,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// ListDocuments returns paginated documents with an optional template filter.
func (s *Service) ListDocuments(_ context.Context, limit, offset int, template, sort string) ([]DocumentListItem, int, error) {
	rows, total, err := s.cat.ListDocuments(limit, offset, template, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, DocumentListItem{
			ID:        row.ID,
			Title:     row.Title,
			Template:  row.Template,
			DestPath:  row.DestPath,
			Warnings:  len(row.Warnings),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return items, total, nil
}

// Search runs full-text search over converted bodies.
func (s *Service) Search(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	return s.cat.Search(query, limit)
}

// Unresolved lists references whose targets were absent from the export.
func (s *Service) Unresolved(_ context.Context) ([]catalog.RefRow, error) {
	return s.cat.Unresolved()
}
