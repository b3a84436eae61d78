package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher using fsnotify. fsnotify watches are
// per directory, so every directory of the tree is added and new ones are
// picked up from their Create events.
type FSNotifyWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	paths   map[string]bool
	closed  bool

	events chan Event
	errors chan error

	totalEvents   atomic.Int64
	droppedEvents atomic.Int64
	totalErrors   atomic.Int64

	closeCh chan struct{}
	done    sync.WaitGroup
}

// NewFSNotifyWatcher creates a watcher with no paths.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		paths:   make(map[string]bool),
		events:  make(chan Event, cfg.BufferSize),
		errors:  make(chan error, cfg.BufferSize),
		closeCh: make(chan struct{}),
	}
	w.done.Add(1)
	go w.processLoop()
	return w, nil
}

// WatchRecursive adds root and all directories below it. Directories that
// cannot be added are skipped and reported as an *IncompleteError; the
// watcher stays usable for the rest of the tree.
func (w *FSNotifyWatcher) WatchRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// The root itself must be watchable; failures below it are not fatal.
	if err := w.add(abs); err != nil {
		return err
	}
	return w.addTree(abs)
}

// addTree adds the directories below root. It returns an *IncompleteError
// when some of them could not be added.
func (w *FSNotifyWatcher) addTree(root string) error {
	var inc *IncompleteError
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || p == root {
			return nil
		}
		if err := w.add(p); err != nil {
			if errors.Is(err, ErrWatcherClosed) {
				return filepath.SkipAll
			}
			if inc == nil {
				inc = &IncompleteError{Root: root, Err: err}
			}
			inc.Skipped++
		}
		return nil
	})
	if inc != nil {
		return inc
	}
	return nil
}

func (w *FSNotifyWatcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.done.Wait()

	close(w.events)
	close(w.errors)
	return err
}

// Stats returns watcher statistics.
func (w *FSNotifyWatcher) Stats() Stats {
	w.mu.Lock()
	n := len(w.paths)
	w.mu.Unlock()

	return Stats{
		WatchedPaths:  n,
		TotalEvents:   w.totalEvents.Load(),
		DroppedEvents: w.droppedEvents.Load(),
		Errors:        w.totalErrors.Load(),
	}
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.done.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	if op.Has(OpRemove) || op.Has(OpRename) {
		// fsnotify drops the watch of a removed directory on its own.
		w.mu.Lock()
		delete(w.paths, ev.Name)
		w.mu.Unlock()
	}

	w.sendEvent(Event{Path: ev.Name, Op: op, Timestamp: time.Now()})

	if op.Has(OpCreate) {
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			// Subdirectories may already exist by the time this runs (mkdir -p).
			if err := w.add(ev.Name); err == nil {
				if err := w.addTree(ev.Name); err != nil {
					w.reportError(err)
				}
			} else if !errors.Is(err, ErrWatcherClosed) {
				w.reportError(err)
			}
		}
	}
}

// convertOp keeps content and namespace changes; permission-only changes
// are not reported.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

func (w *FSNotifyWatcher) sendEvent(ev Event) {
	select {
	case w.events <- ev:
		w.totalEvents.Add(1)
	default:
		w.droppedEvents.Add(1)
	}
}

func (w *FSNotifyWatcher) reportError(err error) {
	w.totalErrors.Add(1)
	select {
	case w.errors <- err:
	default:
	}
}

// Ensure FSNotifyWatcher implements Watcher.
var _ Watcher = (*FSNotifyWatcher)(nil)
