package app

import (
	"github.com/dshills/flok/internal/supervisor"
)

// Action is a user intent decoded by the backend.
type Action int

const (
	ActionNone Action = iota
	ActionMoveUp
	ActionMoveDown
	ActionConfirm
	ActionRestart
	ActionQuit
	ActionResize
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionMoveUp:
		return "move-up"
	case ActionMoveDown:
		return "move-down"
	case ActionConfirm:
		return "confirm"
	case ActionRestart:
		return "restart"
	case ActionQuit:
		return "quit"
	case ActionResize:
		return "resize"
	default:
		return "none"
	}
}

// InputEvent is one decoded input. Width and Height are set for
// ActionResize.
type InputEvent struct {
	Action        Action
	Width, Height int
}

// Frame is everything a backend needs to draw one screen.
type Frame struct {
	Snapshot supervisor.Snapshot
	Layout   Layout
	// Warning replaces the key hints on the status line when set.
	Warning string
	// Watching is false when change detection is unavailable.
	Watching bool
}

// Backend owns the user's terminal.
type Backend interface {
	// Init enters full-screen mode.
	Init() error

	// Shutdown restores the terminal. It must be safe to call once after
	// a successful Init.
	Shutdown()

	// Size returns the current width and height in cells.
	Size() (width, height int)

	// Events delivers decoded input until Shutdown.
	Events() <-chan InputEvent

	// Draw renders a frame.
	Draw(Frame)
}
