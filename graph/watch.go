package graph

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for more changes before
// reloading. Editors often write a file several times in quick succession.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the store when any of its source files change on disk,
// then invalidates and recomputes the schema snapshot.
type Watcher struct {
	store     *Store
	snapshots *SnapshotProvider
	watcher   *fsnotify.Watcher
	logger    *slog.Logger
	debounce  time.Duration

	// watched maps absolute file path -> true for event filtering; fsnotify
	// watches directories because many editors replace files on save.
	watched map[string]bool

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher over the store's source files.
func NewWatcher(store *Store, snapshots *SnapshotProvider, paths []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		store:     store,
		snapshots: snapshots,
		watcher:   fsw,
		logger:    logger,
		debounce:  defaultDebounce,
		watched:   make(map[string]bool),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		w.watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "dir", dir, "error", err)
		}
	}

	return w, nil
}

// Start begins processing filesystem events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
	w.logger.Info("Graph file watcher started", "files", len(w.watched), "debounce", w.debounce)
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	if !w.watched[abs] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Graph file change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !pending {
		return
	}

	if err := w.store.Reload(); err != nil {
		w.logger.Error("Graph reload failed", "error", err)
		return
	}

	w.snapshots.Invalidate()
	snap := w.snapshots.Compute()
	w.logger.Info("Graph reloaded", "triples", snap.TripleCount)
}
