// Package assets copies referenced images into the destination resource
// folder and rewrites in-document references to the embed syntax.
//
// The Store is the run-scoped dedup table: a source image is copied exactly
// once no matter how many documents reference it, and basename collisions
// between distinct files get a numeric suffix. Access is mutex-serialized so
// parallel document conversion cannot produce duplicate copies.
package assets

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/starford/runeport/internal/checksum"
	"github.com/starford/runeport/internal/models"
	"github.com/starford/runeport/internal/source"
	"github.com/starford/runeport/internal/storage"
)

// Store resolves raw image references to destination filenames.
type Store struct {
	srcFS       storage.Provider
	destFS      storage.Provider
	locator     *source.AssetLocator
	resourceDir string
	pattern     *regexp.Regexp
	fetcher     *Fetcher // nil when remote downloads are disabled
	logger      *slog.Logger

	mu    sync.Mutex
	byRef map[string]string // raw reference -> destination filename
	bySum map[string]string // content digest -> destination filename
	names map[string]string // destination filename -> content digest
}

// NewStore creates an asset store. pattern is the in-body image reference
// pattern; fetcher may be nil to disable remote downloads.
func NewStore(srcFS, destFS storage.Provider, locator *source.AssetLocator, resourceDir, pattern string, fetcher *Fetcher, logger *slog.Logger) (*Store, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("assets: compile image pattern: %w", err)
	}
	return &Store{
		srcFS:       srcFS,
		destFS:      destFS,
		locator:     locator,
		resourceDir: strings.Trim(resourceDir, "/"),
		pattern:     re,
		fetcher:     fetcher,
		logger:      logger,
		byRef:       make(map[string]string),
		bySum:       make(map[string]string),
		names:       make(map[string]string),
	}, nil
}

// Embed returns the destination embed syntax for an image reference, copying
// the file on first sight. ok is false when the source image cannot be found
// (or fetched); the caller should keep the original reference text.
func (s *Store) Embed(ref string) (embed string, w *models.Warning, ok bool) {
	s.mu.Lock()
	if name, seen := s.byRef[ref]; seen {
		s.mu.Unlock()
		return s.embedText(name), nil, true
	}
	s.mu.Unlock()

	data, err := s.load(ref)
	if err != nil {
		warn := models.Warnf(models.WarnMissingAsset, "image %q: %v", ref, err)
		return "", &warn, false
	}

	name, err := s.record(ref, data)
	if err != nil {
		warn := models.Warnf(models.WarnMissingAsset, "image %q: %v", ref, err)
		return "", &warn, false
	}
	return s.embedText(name), nil, true
}

// RewriteBody replaces every image reference matching the configured pattern
// with the destination embed syntax. Unresolvable references pass through
// unchanged.
func (s *Store) RewriteBody(body string) (string, []models.Warning) {
	var warnings []models.Warning
	out := s.pattern.ReplaceAllStringFunc(body, func(ref string) string {
		embed, w, ok := s.Embed(ref)
		if w != nil {
			warnings = append(warnings, *w)
		}
		if !ok {
			return ref
		}
		return embed
	})
	return out, warnings
}

// Seed preloads mappings recorded by a previous run, so references seen
// before keep their destination names and new content never claims a name
// that is already taken in the resource folder.
func (s *Store) Seed(mapping map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, name := range mapping {
		s.byRef[ref] = name
		if _, taken := s.names[name]; !taken {
			s.names[name] = "seeded:" + ref
		}
	}
}

// Mapping returns a copy of the reference -> destination filename table.
func (s *Store) Mapping() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.byRef))
	for k, v := range s.byRef {
		out[k] = v
	}
	return out
}

func (s *Store) embedText(name string) string {
	return "![[" + s.resourceDir + "/" + name + "]]"
}

// load obtains the image bytes: from the export tree when the reference
// locates a sibling file, otherwise over HTTP when a fetcher is configured.
func (s *Store) load(ref string) ([]byte, error) {
	if rel, found := s.locator.Locate(ref); found {
		return s.srcFS.Read(rel)
	}
	if s.fetcher != nil {
		return s.fetcher.Fetch(ref)
	}
	return nil, fmt.Errorf("not found in export tree")
}

// record registers data under a collision-safe destination name and writes
// the file if this content has not been copied before.
func (s *Store) record(ref string, data []byte) (string, error) {
	sum := checksum.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Same bytes already copied under a different reference: reuse the copy.
	if name, seen := s.bySum[sum]; seen {
		s.byRef[ref] = name
		return name, nil
	}

	name := destName(ref)
	stem, ext := splitExt(name)
	for i := 2; ; i++ {
		existing, taken := s.names[name]
		if !taken {
			break
		}
		if existing == sum {
			break
		}
		name = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}

	if err := s.destFS.Write(s.resourceDir+"/"+name, data); err != nil {
		return "", err
	}
	s.byRef[ref] = name
	s.bySum[sum] = name
	s.names[name] = sum
	s.logger.Debug("asset copied", slog.String("ref", ref), slog.String("name", name))
	return name, nil
}

// destName derives a plain filename from a reference, dropping any path and
// query string.
func destName(ref string) string {
	base := path.Base(strings.TrimSuffix(strings.TrimSpace(ref), "/"))
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "." || base == "/" {
		base = "asset"
	}
	return base
}

func splitExt(name string) (stem, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
