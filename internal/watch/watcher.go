// Package watch ingests files dropped into a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docrag/internal/app"
	"docrag/internal/pkg/extract"
)

type Reingester interface {
	Reingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
}

type Options struct {
	// Debounce is how long a path must stay quiet before it is ingested.
	Debounce time.Duration
	// InitialScan ingests the files already in the directory on start.
	InitialScan bool
	OwnerID     string
}

// Watcher re-ingests supported files in one directory whenever they are
// created or written. Each file replaces earlier documents with its name.
type Watcher struct {
	dir    string
	ingest Reingester
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

func New(dir string, ingest Reingester, opts Options, logger *slog.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:     dir,
		ingest:  ingest,
		opts:    opts,
		logger:  logger.With("component", "watch", "dir", dir),
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or the underlying watcher fails. A
// Watcher runs at most once.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher failed: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	if w.opts.InitialScan {
		if err := w.scan(ctx); err != nil {
			return err
		}
	}
	w.logger.Info("watching for documents", "debounce", w.opts.Debounce)

	defer w.stopTimers()
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleEvent(ev); ok {
				w.schedule(path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case path := <-w.ready:
			w.ingestFile(ctx, path)
		}
	}
}

// handleEvent reports whether ev names a supported file that should be
// (re)ingested.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if !eligible(ev.Name) {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return ev.Name, true
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !eligible(e.Name()) {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// ingestFile logs failures instead of returning them so one bad file does not
// stop the watch.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("read file failed", "path", path, "error", err)
		}
		return
	}
	if len(data) == 0 {
		return
	}

	res, err := w.ingest.Reingest(ctx, app.IngestInput{
		Data:     data,
		FileName: filepath.Base(path),
		OwnerID:  w.opts.OwnerID,
	})
	if err != nil {
		w.logger.Error("ingest failed", "path", path, "error", err, "retryable", app.IsRetryable(err))
		return
	}
	w.logger.Info("ingested", "path", path, "document_id", res.Document.ID, "chunks", res.TotalChunks)
}

// eligible skips hidden and editor temp files.
func eligible(path string) bool {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' || base[0] == '~' {
		return false
	}
	return extract.IsSupportedFile(base)
}
