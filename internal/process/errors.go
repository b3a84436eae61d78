package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for the process package.
var (
	// ErrNotRunning is returned when an operation needs a live child.
	ErrNotRunning = errors.New("process not running")

	// ErrEmptyCommand is returned for a process without a command.
	ErrEmptyCommand = errors.New("empty command")
)

// SpawnError reports a failed spawn step for one slot.
type SpawnError struct {
	ID  ID
	Op  string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
