package jsonfile

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/log"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/store"
)

// Watcher observes the state file and emits a ChangeEvent whenever it is
// rewritten. The parent directory is watched rather than the file itself,
// because atomic saves replace the inode on every write.
type Watcher struct {
	path   string
	fsw    *fsnotify.Watcher
	events chan store.ChangeEvent
	done   chan struct{}
	logger log.Logger
}

// NewWatcher starts watching the state file at path. The caller must Close
// the watcher to release the underlying fsnotify resources.
func NewWatcher(path string, logger log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:   path,
		fsw:    fsw,
		events: make(chan store.ChangeEvent, 8),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run()
	return w, nil
}

// Events returns the channel change notifications are delivered on. The
// channel closes when the watcher is closed.
func (w *Watcher) Events() <-chan store.ChangeEvent {
	return w.events
}

// Close stops watching and closes the events channel.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, open := <-w.fsw.Events:
			if !open {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			raw, err := os.ReadFile(w.path)
			if err != nil {
				w.logger.Warn(map[string]any{"path": w.path, "error": err.Error()}, "state file changed but could not be read")
				continue
			}
			select {
			case w.events <- store.ChangeEvent{Key: domain.StateKey, NewValue: raw}:
			case <-w.done:
				return
			}
		case err, open := <-w.fsw.Errors:
			if !open {
				return
			}
			w.logger.Warn(map[string]any{"error": err.Error()}, "state watcher error")
		}
	}
}

var _ store.Watcher = (*Watcher)(nil)
