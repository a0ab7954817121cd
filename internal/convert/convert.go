// Package convert orchestrates the conversion pipeline: tag extraction,
// metadata mapping, BBCode translation, reference resolution, and asset
// rewriting, in that fixed order per document.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/runeport/internal/assets"
	"github.com/starford/runeport/internal/bbcode"
	"github.com/starford/runeport/internal/catalog"
	"github.com/starford/runeport/internal/frontmatter"
	"github.com/starford/runeport/internal/markup"
	"github.com/starford/runeport/internal/models"
	"github.com/starford/runeport/internal/refs"
	"github.com/starford/runeport/internal/source"
	"github.com/starford/runeport/internal/storage"
)

// Options control the per-document pipeline.
type Options struct {
	ContentTags   []string
	Fields        []frontmatter.Field
	AttemptBBCode bool
	Flatten       bool
	// Workers bounds parallel document conversion; 1 means sequential.
	Workers int
}

// Runner converts an export tree into a destination vault.
type Runner struct {
	opts   Options
	srcFS  storage.Provider
	destFS storage.Provider
	loader *source.Loader
	assets *assets.Store
	cat    catalog.Catalog
	logger *slog.Logger
}

// NewRunner wires a Runner. cat may be nil when no catalog is configured;
// incremental skipping is then disabled.
func NewRunner(opts Options, srcFS, destFS storage.Provider, loader *source.Loader, store *assets.Store, cat catalog.Catalog, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:   opts,
		srcFS:  srcFS,
		destFS: destFS,
		loader: loader,
		assets: store,
		cat:    cat,
		logger: logger,
	}
}

// Failure identifies one document whose conversion was skipped.
type Failure struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarizes a run.
type Report struct {
	Total           int       `json:"total"`
	Converted       int       `json:"converted"`
	Unchanged       int       `json:"unchanged"`
	Warnings        int       `json:"warnings"`
	TitleCollisions int       `json:"title_collisions"`
	Failed          []Failure `json:"failed,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Run executes a full conversion: loads every document, builds the reference
// index, then converts documents one by one. A failure inside a single
// document never aborts the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now()}

	docs, skipped, err := r.loader.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("convert: read source tree: %w", err)
	}
	for _, p := range skipped {
		report.Failed = append(report.Failed, Failure{Path: p, Reason: "unreadable source document"})
	}
	report.Total = len(docs) + len(skipped)

	// Destination paths are assigned before the index is built so every
	// document can reference every other, regardless of conversion order.
	destPaths := r.assignDestPaths(docs)
	idx := refs.NewIndex()
	for _, doc := range docs {
		idx.Add(refs.Entry{ID: doc.ID, Title: doc.Title, Path: destPaths[doc.ID]})
	}
	for _, c := range idx.Collisions() {
		report.TitleCollisions++
		r.logger.Warn("title collision: identifier lookups still resolve both documents",
			slog.String("title", c.Title),
			slog.String("kept", c.KeptID),
			slog.String("dropped", c.DroppedID))
	}

	// Prior-run state: skip unchanged sources, keep asset names stable.
	prior := map[string]string{}
	if r.cat != nil {
		if cs, csErr := r.cat.AllChecksums(); csErr == nil {
			prior = cs
		}
		if m, amErr := r.cat.AssetMap(); amErr == nil {
			r.assets.Seed(m)
		}
	}

	// Attached images declared in envelopes can live on the export host;
	// fetch them ahead of the conversion loop.
	var attached []string
	for _, doc := range docs {
		attached = append(attached, doc.Images...)
	}
	r.assets.Prefetch(ctx, attached)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, doc := range docs {
		if gCtx.Err() != nil {
			break
		}
		if prior[doc.Path] == doc.Checksum && r.destFS.Exists(destPaths[doc.ID]) {
			mu.Lock()
			report.Unchanged++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			warnings, convErr := r.convertOne(doc, destPaths[doc.ID], idx)
			mu.Lock()
			defer mu.Unlock()
			if convErr != nil {
				r.logger.Error("document conversion failed",
					slog.String("id", doc.ID),
					slog.String("path", doc.Path),
					slog.String("error", convErr.Error()))
				report.Failed = append(report.Failed, Failure{ID: doc.ID, Path: doc.Path, Reason: convErr.Error()})
				return nil
			}
			report.Converted++
			report.Warnings += len(warnings)
			return nil
		})
	}
	_ = g.Wait()

	if r.cat != nil {
		if err := r.cat.RecordAssets(r.assets.Mapping()); err != nil {
			r.logger.Warn("recording asset map failed", slog.String("error", err.Error()))
		}
		// Drop catalog entries whose source files are gone.
		current := make(map[string]struct{}, len(docs)+len(skipped))
		for _, doc := range docs {
			current[doc.Path] = struct{}{}
		}
		for _, p := range skipped {
			current[p] = struct{}{}
		}
		for p := range prior {
			if _, ok := current[p]; !ok {
				if delErr := r.cat.DeleteBySource(p); delErr != nil {
					r.logger.Warn("removing stale catalog entry failed",
						slog.String("path", p), slog.String("error", delErr.Error()))
				}
			}
		}
	}

	report.FinishedAt = time.Now()
	r.logSummary(report)
	return report, nil
}

// assignDestPaths derives a unique destination path per document. Two
// documents that slug to the same path get numeric suffixes in traversal
// order, so the assignment is deterministic.
func (r *Runner) assignDestPaths(docs []*models.SourceDocument) map[string]string {
	taken := make(map[string]struct{}, len(docs))
	out := make(map[string]string, len(docs))
	for _, doc := range docs {
		p := source.DestPath(doc, r.opts.Flatten)
		if _, dup := taken[p]; dup {
			stem := strings.TrimSuffix(p, ".md")
			for i := 2; ; i++ {
				candidate := fmt.Sprintf("%s-%d.md", stem, i)
				if _, d := taken[candidate]; !d {
					p = candidate
					break
				}
			}
		}
		taken[p] = struct{}{}
		out[doc.ID] = p
	}
	return out
}

// convertOne runs the fixed pipeline for a single document and writes the
// result. Panics are converted to errors so one bad document cannot take the
// run down.
func (r *Runner) convertOne(doc *models.SourceDocument, destPath string, idx *refs.Index) (warnings []models.Warning, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	allTags := r.allTagNames()

	// 1. Extract tags.
	spans, extractWarns := markup.Extract(doc.Body, allTags)
	warnings = append(warnings, extractWarns...)

	// 2. Metadata.
	matter := frontmatter.Build(doc, spans, r.opts.Fields, allTags)

	// 3. Body: recognized tags become sections (or are unwrapped).
	body := markup.Sectionize(doc.Body, r.opts.ContentTags, r.metadataOnlyTags())

	// 4. BBCode, before reference and image rewriting so new link syntax is
	// never mistaken for BBCode markers.
	if r.opts.AttemptBBCode {
		var bbWarns []models.Warning
		body, bbWarns = bbcode.Translate(body)
		warnings = append(warnings, bbWarns...)
	}

	// 5. Cross-references.
	var references []refs.Reference
	var refWarns []models.Warning
	body, references, refWarns = refs.Resolve(body, idx)
	warnings = append(warnings, refWarns...)

	// 6. Images.
	var assetWarns []models.Warning
	body, assetWarns = r.assets.RewriteBody(body)
	warnings = append(warnings, assetWarns...)
	body = r.appendRelations(doc, body, idx, &warnings)
	body = r.appendAttachments(doc, body, &warnings)

	for _, w := range warnings {
		r.logger.Warn("conversion warning",
			slog.String("id", doc.ID),
			slog.String("kind", w.Kind),
			slog.String("detail", w.Detail))
	}

	// 7. Assemble and write.
	head, err := frontmatter.Render(matter)
	if err != nil {
		return warnings, err
	}
	content := make([]byte, 0, len(head)+len(body)+1)
	content = append(content, head...)
	content = append(content, strings.TrimLeft(body, "\n")...)
	if len(content) == 0 || content[len(content)-1] != '\n' {
		content = append(content, '\n')
	}
	if err := r.destFS.Write(destPath, content); err != nil {
		return warnings, err
	}

	if r.cat != nil {
		rows := make([]catalog.RefRow, 0, len(references))
		for _, ref := range references {
			rows = append(rows, catalog.RefRow{
				SourceID:     doc.ID,
				Target:       ref.Target,
				Label:        ref.Label,
				ResolvedPath: ref.Path,
			})
		}
		row := catalog.DocumentRow{
			ID:         doc.ID,
			Title:      doc.Title,
			Template:   doc.Template,
			SourcePath: doc.Path,
			DestPath:   destPath,
			Checksum:   doc.Checksum,
			Warnings:   warnings,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := r.cat.UpsertDocument(row, string(content), rows); err != nil {
			return warnings, err
		}
	}

	r.logger.Debug("converted",
		slog.String("id", doc.ID),
		slog.String("dest", destPath))
	return warnings, nil
}

// appendRelations renders the envelope's relations block as trailing
// sections, one heading per relation key in envelope order. Article items
// resolve through the reference index the way in-text markers do; a title
// the index cannot place degrades to plain text with a warning.
func (r *Runner) appendRelations(doc *models.SourceDocument, body string, idx *refs.Index, warnings *[]models.Warning) string {
	if len(doc.Relations) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	for _, rel := range doc.Relations {
		b.WriteString("\n\n## ")
		b.WriteString(markup.TitleWords(rel.Name))
		b.WriteString("\n\n")
		for _, item := range rel.Items {
			if item.IsDocument {
				if e, ok := idx.Lookup(item.Title); ok {
					b.WriteString(refs.WikiLink(e, item.Title))
					b.WriteString("\n")
					continue
				}
				*warnings = append(*warnings, models.Warnf(models.WarnUnresolvedReference,
					"related document %q not found in export", item.Title))
			}
			b.WriteString(item.Title)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// appendAttachments embeds envelope-declared images that the body itself does
// not reference, under an Attachments section.
func (r *Runner) appendAttachments(doc *models.SourceDocument, body string, warnings *[]models.Warning) string {
	var embeds []string
	for _, ref := range doc.Images {
		if strings.Contains(doc.Body, ref) {
			continue // already rewritten in place
		}
		embed, w, ok := r.assets.Embed(ref)
		if w != nil {
			*warnings = append(*warnings, *w)
		}
		if ok {
			embeds = append(embeds, embed)
		}
	}
	if len(embeds) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n\n## Attachments\n\n")
	for _, e := range embeds {
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String()
}

// allTagNames is the union of content tags and every tag a field mapping can
// search, deduplicated.
func (r *Runner) allTagNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(n string) {
		n = strings.ToLower(n)
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for _, t := range r.opts.ContentTags {
		add(t)
	}
	for _, f := range r.opts.Fields {
		for _, t := range f.Tags {
			add(t)
		}
	}
	return out
}

// metadataOnlyTags are tags searched by field mappings but not rendered as
// content sections; their markers are unwrapped in the body.
func (r *Runner) metadataOnlyTags() []string {
	content := make(map[string]struct{}, len(r.opts.ContentTags))
	for _, t := range r.opts.ContentTags {
		content[strings.ToLower(t)] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, f := range r.opts.Fields {
		for _, t := range f.Tags {
			t = strings.ToLower(t)
			if _, isContent := content[t]; isContent {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (r *Runner) logSummary(report *Report) {
	r.logger.Info("conversion finished",
		slog.Int("total", report.Total),
		slog.Int("converted", report.Converted),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("failed", len(report.Failed)),
		slog.Int("warnings", report.Warnings),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	for _, f := range report.Failed {
		r.logger.Warn("skipped document",
			slog.String("id", f.ID),
			slog.String("path", f.Path),
			slog.String("reason", f.Reason))
	}
}
