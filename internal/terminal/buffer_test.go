package terminal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestNewBufferInvalidSize(t *testing.T) {
	if _, err := NewBuffer(0, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewBuffer(0, 10) error = %v, want ErrInvalidSize", err)
	}
	if _, err := NewBuffer(10, -1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewBuffer(10, -1) error = %v, want ErrInvalidSize", err)
	}
}

func TestBufferResizeCallsApplyFirst(t *testing.T) {
	b := newTestBuffer(t, 4, 10)

	var gotRows, gotCols int
	err := b.Resize(6, 20, func(rows, cols int) error {
		gotRows, gotCols = rows, cols
		// The grid must not have changed yet.
		if r, c := b.scr.rows, b.scr.cols; r != 4 || c != 10 {
			t.Errorf("grid during apply = %dx%d, want 4x10", r, c)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if gotRows != 6 || gotCols != 20 {
		t.Errorf("apply got %dx%d, want 6x20", gotRows, gotCols)
	}
	if r, c := b.Size(); r != 6 || c != 20 {
		t.Errorf("Size() = %dx%d, want 6x20", r, c)
	}
}

func TestBufferResizeApplyFailureKeepsGrid(t *testing.T) {
	b := newTestBuffer(t, 4, 10)
	boom := errors.New("ioctl failed")

	err := b.Resize(8, 8, func(int, int) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Resize() error = %v, want %v", err, boom)
	}
	if r, c := b.Size(); r != 4 || c != 10 {
		t.Errorf("Size() = %dx%d, want unchanged 4x10", r, c)
	}
}

func TestBufferResizeSameSizeSkipsApply(t *testing.T) {
	b := newTestBuffer(t, 4, 10)
	called := false
	if err := b.Resize(4, 10, func(int, int) error { called = true; return nil }); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if called {
		t.Error("apply called for an unchanged size")
	}
}

func TestBufferResizeInvalid(t *testing.T) {
	b := newTestBuffer(t, 4, 10)
	if err := b.Resize(0, 5, nil); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Resize(0, 5) error = %v, want ErrInvalidSize", err)
	}
}

func TestBufferResizeKeepsCursorLine(t *testing.T) {
	b := newTestBuffer(t, 4, 10)
	b.Write([]byte("a\r\nb\r\nc\r\nd"))

	if err := b.Resize(2, 10, nil); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	g := b.Snapshot()
	if g.Line(0) != "c" || g.Line(1) != "d" {
		t.Errorf("lines = %q, %q, want c, d", g.Line(0), g.Line(1))
	}
	if g.CursorRow != 1 {
		t.Errorf("cursor row = %d, want 1", g.CursorRow)
	}
}

func TestBufferResizeTruncatesAndExtendsColumns(t *testing.T) {
	b := newTestBuffer(t, 2, 6)
	b.Write([]byte("abcdef"))

	b.Resize(2, 3, nil)
	if got := b.Snapshot().Line(0); got != "abc" {
		t.Errorf("after shrink line = %q, want %q", got, "abc")
	}

	b.Resize(2, 8, nil)
	g := b.Snapshot()
	if g.Cols != 8 || g.Line(0) != "abc" {
		t.Errorf("after grow cols = %d line = %q", g.Cols, g.Line(0))
	}
	if g.CursorCol != 2 {
		t.Errorf("cursor col = %d, want 2", g.CursorCol)
	}

	// Output after a resize lands in the new geometry.
	b.Write([]byte("\r\nxyzxyzxy"))
	if got := b.Snapshot().Line(1); got != "xyzxyzxy" {
		t.Errorf("line 1 = %q, want %q", got, "xyzxyzxy")
	}
}

func TestBufferResizeAlternateScreen(t *testing.T) {
	b := newTestBuffer(t, 3, 6)
	b.Write([]byte("main\x1b[?1049hfull"))
	b.Resize(2, 3, nil)
	b.Write([]byte("\x1b[?1049l"))

	g := b.Snapshot()
	if g.Rows != 2 || g.Cols != 3 {
		t.Fatalf("grid = %dx%d, want 2x3", g.Rows, g.Cols)
	}
	if got := g.Line(0); got != "mai" {
		t.Errorf("restored line = %q, want %q", got, "mai")
	}
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	b := newTestBuffer(t, 1, 5)
	b.Write([]byte("abc"))
	g := b.Snapshot()
	b.Write([]byte("\rzzz"))

	if got := g.Line(0); got != "abc" {
		t.Errorf("snapshot changed to %q", got)
	}
}

func TestBufferBytesWritten(t *testing.T) {
	b := newTestBuffer(t, 1, 5)
	b.Write([]byte("abc"))
	b.Write([]byte("\x1b[m"))
	if got := b.BytesWritten(); got != 6 {
		t.Errorf("BytesWritten() = %d, want 6", got)
	}
}

func TestBufferConcurrentWriteSnapshot(t *testing.T) {
	b := newTestBuffer(t, 10, 40)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			fmt.Fprintf(b, "\x1b[3%dmline %d\r\n", i%8, i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			g := b.Snapshot()
			if len(g.Cells) != g.Rows*g.Cols {
				t.Errorf("snapshot has %d cells for %dx%d", len(g.Cells), g.Rows, g.Cols)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.Resize(5+i%10, 20+i%30, nil)
		}
	}()
	wg.Wait()

	// A chunk is applied atomically: no snapshot sees half of it.
	b.Resize(3, 20, nil)
	b.Write([]byte("\x1b[2J\x1b[H" + strings.Repeat("x", 20)))
	if got := b.Snapshot().Line(0); got != strings.Repeat("x", 20) {
		t.Errorf("line 0 = %q", got)
	}
}
