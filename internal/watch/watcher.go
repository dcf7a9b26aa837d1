// Package watch enqueues files dropped into a spool directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce is configured
const DefaultDebounce = 500 * time.Millisecond

// Submitter enqueues a batch of files for upload
type Submitter interface {
	Submit(ctx context.Context, paths []string) []int64
}

// Watcher submits regular files created in a directory once they have
// stopped changing for the debounce period. Hidden files are ignored so
// writers can stage under a dot-name and rename into place. The directory
// is not watched recursively.
type Watcher struct {
	dir      string
	submit   Submitter
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time // file path -> last change time
}

// New creates a Watcher for dir. A non-positive debounce means DefaultDebounce.
func New(dir string, submitter Submitter, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", dir)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      dir,
		submit:   submitter,
		debounce: debounce,
		logger:   logger.With("component", "spool_watcher", "dir", dir),
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches the directory until ctx is done. It returns nil on
// cancellation and an error if the watch cannot be set up or fails.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching spool directory", "debounce", w.debounce)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.handle(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			if ready := w.ready(now); len(ready) > 0 {
				ids := w.submit.Submit(ctx, ready)
				w.logger.Info("spooled files enqueued",
					"file_count", len(ready),
					"task_ids", ids)
			}
		}
	}
}

// tick is the flush interval, a fraction of the debounce
func (w *Watcher) tick() time.Duration {
	return max(w.debounce/5, 10*time.Millisecond)
}

// handle tracks changes to candidate files
func (w *Watcher) handle(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.pending[event.Name] = time.Now()
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
	}
}

// ready removes and returns the pending regular files that have been quiet
// for the debounce period, sorted by path
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	var settled []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	files := settled[:0]
	for _, path := range settled {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	slices.Sort(files)
	return files
}
