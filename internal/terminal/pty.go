package terminal

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// MaxSize is the largest row or column count a window size can carry.
const MaxSize = math.MaxUint16

// PTY is the master side of a pseudo-terminal.
type PTY interface {
	io.ReadWriteCloser

	// Resize sets the window size seen by the child.
	Resize(rows, cols int) error

	// Size reports the current window size.
	Size() (rows, cols int, err error)
}

// StartPTY starts cmd on a new pseudo-terminal of rows by cols. The child
// becomes a session leader with the terminal as its controlling tty, so its
// process group id equals its pid.
func StartPTY(cmd *exec.Cmd, rows, cols int) (PTY, error) {
	if !validSize(rows, cols) {
		return nil, ErrInvalidSize
	}
	f, err := pty.StartWithSize(cmd, winsize(rows, cols))
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	return &ptyFile{f: f}, nil
}

func validSize(rows, cols int) bool {
	return rows >= 1 && cols >= 1 && rows <= MaxSize && cols <= MaxSize
}

func winsize(rows, cols int) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}

type ptyFile struct {
	f *os.File
}

func (p *ptyFile) Read(b []byte) (int, error) {
	return p.f.Read(b)
}

func (p *ptyFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *ptyFile) Close() error {
	return p.f.Close()
}

func (p *ptyFile) Resize(rows, cols int) error {
	if !validSize(rows, cols) {
		return ErrInvalidSize
	}
	if err := pty.Setsize(p.f, winsize(rows, cols)); err != nil {
		return fmt.Errorf("set window size: %w", err)
	}
	return nil
}

func (p *ptyFile) Size() (int, int, error) {
	return pty.Getsize(p.f)
}
