// Package watcher turns filesystem activity into restart triggers.
//
// FSNotifyWatcher reports coarse change notifications for everything under
// a root directory. Debouncer turns bursts of notifications into one
// deadline per watched process; it has no goroutines of its own and is
// driven by the caller's clock.
package watcher

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
	ErrNotDirectory  = errors.New("path is not a directory")
)

// IncompleteError reports directories below a watched root that could not
// be added, typically because the watch limit ran out. The rest of the
// tree is still watched.
type IncompleteError struct {
	Root    string
	Skipped int
	// Err is the first failure.
	Err error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("watch %s: %d directories not watched: %v", e.Root, e.Skipped, e.Err)
}

func (e *IncompleteError) Unwrap() error {
	return e.Err
}

// Op is the kind of change that was observed.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case 0:
		return "NONE"
	default:
		return "MULTIPLE"
	}
}

// Has returns true if the operation includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change notification. Consumers treat it as "something
// changed"; Path and Op are informational.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Stats provides watcher status information.
type Stats struct {
	WatchedPaths  int
	TotalEvents   int64
	DroppedEvents int64
	Errors        int64
}

// Watcher monitors a directory tree.
type Watcher interface {
	// WatchRecursive watches root and every directory below it, including
	// directories created later.
	WatchRecursive(root string) error

	// Events returns the notification channel. It is closed by Close.
	Events() <-chan Event

	// Errors returns the error channel. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the capacity of the event and error channels.
	// When the event channel is full new events are dropped; a burst only
	// needs one delivered event to arm the debounce.
	BufferSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 256}
}

// Option configures a watcher.
type Option func(*Config)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}
