package convert

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce window between a burst of file events and the next run. Exports
// are often unpacked in bulk; a short delay batches those writes.
const watchDebounce = 500 * time.Millisecond

// Watch monitors the source tree and re-runs the conversion after changes.
// Runs are incremental: unchanged documents are skipped by checksum, so a
// single-file edit reconverts one document. onUpdate (if non-nil) is called
// after each completed run.
func (r *Runner) Watch(ctx context.Context, sourceRoot string, onUpdate func(*Report)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, sourceRoot); err != nil {
		return err
	}

	r.logger.Info("watcher: started", slog.String("root", sourceRoot))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			report, runErr := r.Run(ctx)
			if runErr != nil {
				r.logger.Error("watcher: reconversion failed", slog.String("error", runErr.Error()))
				continue
			}
			if onUpdate != nil {
				onUpdate(report)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// New directories need to join the watch list before their
			// contents produce events.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						r.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
