package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// ErrWatcherClosed is returned when using a closed watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Watcher keeps an Index in step with the file system.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	index   *Index
	log     pslog.Logger

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup

	onChange func(path string)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithChangeHook registers fn to be called after each event applied to the
// index.
func WithChangeHook(fn func(path string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// NewWatcher watches the index root and every non-hidden directory below
// it, and starts applying events to the index.
func NewWatcher(index *Index, logger pslog.Logger, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		index:   index,
		log:     logger.With("component", "workspace.watcher"),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.watchTree(index.Root()); err != nil {
		fsw.Close()
		return nil, err
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// watchTree adds dir and its non-hidden subdirectories.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.log.Warn("watch failed", "path", p, "err", err)
		}
		return nil
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.watcher.Close()
}

// Run blocks until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-w.closeCh:
	}
	return w.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if skipDir(filepath.Base(ev.Name)) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.watchTree(ev.Name); err != nil {
				w.log.Warn("watch new directory failed", "path", ev.Name, "err", err)
			}
			w.addTree(ev.Name)
		} else {
			w.index.Add(ev.Name)
		}
		w.log.Trace("workspace file added", "path", ev.Name)

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.index.Remove(ev.Name)
		w.log.Trace("workspace file removed", "path", ev.Name)

	default:
		return
	}

	if w.onChange != nil {
		w.onChange(ev.Name)
	}
}

// addTree indexes the files of a directory created after the initial scan.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		w.index.Add(p)
		return nil
	})
}
