package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	fetchAttempts = 5
	fetchWorkers  = 4
	maxAssetBytes = 50 << 20 // 50 MB
)

// Fetcher downloads remote image references with retry and exponential
// backoff. Relative references are resolved against the export's base URL.
type Fetcher struct {
	client   *http.Client
	baseURL  string
	backoff  time.Duration
	maxBytes int64
}

// NewFetcher creates a Fetcher resolving relative references against baseURL.
func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		backoff:  2 * time.Second,
		maxBytes: maxAssetBytes,
	}
}

// Fetch downloads one reference. Responses with status 429 or 5xx are
// retried; 404 is a permanent miss.
func (f *Fetcher) Fetch(ref string) ([]byte, error) {
	target := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		u, err := url.JoinPath(f.baseURL, ref)
		if err != nil {
			return nil, fmt.Errorf("join url: %w", err)
		}
		target = u
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(f.backoff * time.Duration(1<<(attempt-1)))
		}
		data, retry, err := f.fetchOnce(target)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", fetchAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(target string) (data []byte, retry bool, err error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", "runeport/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Read one byte past the cap to tell an oversized asset from one
		// that is exactly at it; a truncated image must never reach the vault.
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if readErr != nil {
			return nil, true, readErr
		}
		if int64(len(body)) > f.maxBytes {
			return nil, false, fmt.Errorf("asset exceeds %d bytes", f.maxBytes)
		}
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}
}

// Prefetch resolves the given references ahead of conversion, downloading
// remote ones through a bounded worker pool. Failures are logged; each
// document later reports its own missing-asset warning.
func (s *Store) Prefetch(ctx context.Context, refs []string) {
	seen := make(map[string]struct{}, len(refs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)

	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if _, local := s.locator.Locate(ref); local {
			continue // copied lazily during conversion, no network involved
		}
		g.Go(func() error {
			if _, w, ok := s.Embed(ref); !ok && w != nil {
				s.logger.Warn("prefetch failed", slog.String("ref", ref), slog.String("detail", w.Detail))
			}
			return nil
		})
	}
	_ = g.Wait()
}
