package terminal

import (
	"sync"
)

// Buffer is the emulated screen of one process. The output reader applies
// chunks with Write while the render path takes Snapshots; both go through
// one RWMutex so a snapshot never observes a half-applied chunk.
type Buffer struct {
	mu     sync.RWMutex
	scr    *screen
	parser *parser
	bytes  int64
}

// NewBuffer creates a blank buffer of rows by cols cells.
func NewBuffer(rows, cols int) (*Buffer, error) {
	if rows < 1 || cols < 1 {
		return nil, ErrInvalidSize
	}
	scr := newScreen(rows, cols)
	return &Buffer{scr: scr, parser: newParser(scr)}, nil
}

// Write parses p and applies it to the grid. It never fails, so Buffer can
// sit behind an io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.parser.feed(p)
	b.bytes += int64(len(p))
	b.mu.Unlock()
	return len(p), nil
}

// Resize reshapes the grid to rows by cols. When apply is non-nil it is
// called first, with the lock held, so the pseudo-terminal's window size and
// the grid change together; if apply fails the grid is left untouched.
func (b *Buffer) Resize(rows, cols int, apply func(rows, cols int) error) error {
	if rows < 1 || cols < 1 {
		return ErrInvalidSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if rows == b.scr.rows && cols == b.scr.cols {
		return nil
	}
	if apply != nil {
		if err := apply(rows, cols); err != nil {
			return err
		}
	}
	b.scr.resize(rows, cols)
	return nil
}

// Size returns the current grid dimensions.
func (b *Buffer) Size() (rows, cols int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scr.rows, b.scr.cols
}

// Snapshot copies the grid for rendering.
func (b *Buffer) Snapshot() Grid {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scr.grid()
}

// Title returns the last window title set with OSC 0 or 2.
func (b *Buffer) Title() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parser.title
}

// BytesWritten returns the total output applied to the buffer.
func (b *Buffer) BytesWritten() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bytes
}
