package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/farmshift/catalog"
)

// CatalogReloader reloads a catalog file when it changes on disk and hands
// the new catalog to apply. A file that fails to load is logged and the
// previous catalog stays in place.
type CatalogReloader struct {
	path     string
	apply    func(*catalog.Catalog)
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	reloads atomic.Int64
	failed  atomic.Int64
}

// NewCatalogReloader creates a reloader for path. Call Start to begin.
func NewCatalogReloader(path string, apply func(*catalog.Catalog), logger *slog.Logger) *CatalogReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogReloader{
		path:     filepath.Clean(path),
		apply:    apply,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start watches the catalog's directory; editors often replace files by
// rename, which a watch on the file itself would miss.
func (r *CatalogReloader) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return fmt.Errorf("config: watch %s: %w", r.path, err)
	}
	r.watcher = w
	go r.run(ctx)
	r.logger.Info("config: watching catalog", "path", r.path)
	return nil
}

// Stop ends the watch and waits for the loop to exit. It is idempotent.
func (r *CatalogReloader) Stop() {
	if r.watcher == nil {
		return
	}
	r.once.Do(func() {
		close(r.stop)
		<-r.done
		if err := r.watcher.Close(); err != nil {
			r.logger.Warn("config: close watcher", "error", err)
		}
	})
}

// Reloads counts successful reloads.
func (r *CatalogReloader) Reloads() int64 { return r.reloads.Load() }

// Failures counts reloads that failed to parse.
func (r *CatalogReloader) Failures() int64 { return r.failed.Load() }

func (r *CatalogReloader) run(ctx context.Context) {
	defer close(r.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("config: watcher error", "error", err)

		case <-fire:
			fire = nil
			r.reload()
		}
	}
}

func (r *CatalogReloader) reload() {
	c, err := catalog.Load(r.path)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("config: catalog reload failed", "path", r.path, "error", err)
		return
	}
	for _, issue := range catalog.Validate(c) {
		r.logger.Warn("config: catalog", "issue", issue.String())
	}
	r.apply(c)
	r.reloads.Add(1)
	r.logger.Info("config: catalog reloaded", "path", r.path, "sites", len(c.Sites))
}
