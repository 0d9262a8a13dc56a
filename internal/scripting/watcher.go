package scripting

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher marks the scripts directory dirty when a .lua file changes. The
// editor loop polls TakeDirty; reloads never happen on the watcher goroutine.
type Watcher struct {
	Dir string

	dirty   atomic.Bool
	changed chan struct{} // signalled on every dirty transition, for tests
	done    chan struct{}
	watcher *fsnotify.Watcher
	log     *zap.Logger
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		Dir:     dir,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		watcher: fw,
		log:     log,
	}, nil
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and waits for its goroutine.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

// Changed is signalled after a script change marks the watcher dirty.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Dirty reports whether a change is pending.
func (w *Watcher) Dirty() bool { return w.dirty.Load() }

// TakeDirty returns the pending flag and clears it.
func (w *Watcher) TakeDirty() bool { return w.dirty.Swap(false) }

// MarkDirty forces the next TakeDirty to report a change.
func (w *Watcher) MarkDirty() { w.dirty.Store(true) }

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != ".lua" {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.log.Debug("script changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
				w.dirty.Store(true)
				select {
				case w.changed <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("script watcher error", zap.Error(err))
		}
	}
}
