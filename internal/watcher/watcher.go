// Package watcher monitors the transcripts directory and triggers pipeline
// runs for newly dropped files.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kalambet/debrief/internal/transcript"
)

// Handler processes one newly detected transcript file name (base name,
// not full path).
type Handler func(ctx context.Context, name string)

// defaultSettle is how long a file must stay quiet after its last write
// event before it is handed to the handler. Transcripts are copied in, so
// a short settle window is enough.
const defaultSettle = 500 * time.Millisecond

// Watcher watches one directory for transcript files. Events for the same
// file are coalesced: the handler fires once per file after writes settle.
type Watcher struct {
	dir     string
	handler Handler
	settle  time.Duration
	logger  *slog.Logger

	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a Watcher over dir. The directory must already exist.
func New(dir string, handler Handler, settle time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		settle:  settle,
		logger:  slog.Default(),
		fs:      fs,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start blocks processing filesystem events until ctx is cancelled. Files
// whose names don't parse as transcripts are ignored.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("watching for transcripts", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if _, ok := transcript.ParseName(name); !ok {
				w.logger.Debug("ignoring non-transcript file", "file", name)
				continue
			}
			w.schedule(ctx, name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// schedule (re)arms the settle timer for name. Repeated write events push
// the timer back so the handler only sees finished files.
func (w *Watcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[name]; ok {
		t.Reset(w.settle)
		return
	}

	w.wg.Add(1)
	w.pending[name] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()

		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("new transcript detected", "file", name)
		w.handler(ctx, name)
	})
}

// drain stops pending timers and waits for in-flight handlers.
func (w *Watcher) drain() {
	w.mu.Lock()
	for name, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, name)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Close shuts down the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
