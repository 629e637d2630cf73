package dbc

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/canpulse/canpulse/pkg/log"
)

// reloadDebounce coalesces the bursts of write events editors and scp
// produce for a single save.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the database when its definition file changes on disk.
// A failed reload keeps the previous descriptors and is logged, never
// fatal: the bus loops keep running on the last good database.
type Watcher struct {
	db     *Database
	logger log.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the database's definition file.
func NewWatcher(db *Database, logger log.Logger) *Watcher {
	return &Watcher{db: db, logger: logger}
}

// Run watches the definition file until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("dbc watcher: create failed", log.Err(err))
		return
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a file-level watch.
	dir := filepath.Dir(w.db.Path())
	if err := watcher.Add(dir); err != nil {
		w.logger.Error("dbc watcher: watch failed", log.String("dir", dir), log.Err(err))
		return
	}

	target := filepath.Base(w.db.Path())

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dbc watcher: error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	if err := w.db.Reload(); err != nil {
		w.logger.Error("dbc watcher: reload failed, keeping previous descriptors", log.Err(err))
		return
	}
	w.logger.Info("dbc watcher: database reloaded",
		log.String("path", w.db.Path()),
		log.Int("messages", w.db.Len()),
	)
}
