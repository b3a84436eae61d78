// Package ui draws frames and decodes keys on the user's terminal with
// tcell.
package ui

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/flok/internal/app"
)

// Terminal implements app.Backend using tcell.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex

	events   chan app.InputEvent
	done     chan struct{}
	stopOnce sync.Once
}

// NewTerminal creates a backend on the controlling terminal.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen), nil
}

// NewTerminalWithScreen creates a backend on screen, such as a
// tcell.SimulationScreen.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{
		screen: screen,
		events: make(chan app.InputEvent, 64),
		done:   make(chan struct{}),
	}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.HideCursor()
	t.screen.Clear()

	go t.poll()
	return nil
}

func (t *Terminal) Shutdown() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		defer t.mu.Unlock()
		t.screen.Fini()
	})
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) Events() <-chan app.InputEvent {
	return t.events
}

// poll decodes tcell events until the screen is finalized.
//
// PollEvent blocks; Fini unblocks it with a nil event.
func (t *Terminal) poll() {
	defer close(t.events)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		in, ok := convertEvent(ev)
		if !ok {
			continue
		}
		select {
		case t.events <- in:
		case <-t.done:
			return
		}
	}
}

// convertEvent maps a tcell event to an input action.
func convertEvent(ev tcell.Event) (app.InputEvent, bool) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		if a := convertKey(e); a != app.ActionNone {
			return app.InputEvent{Action: a}, true
		}
	case *tcell.EventResize:
		w, h := e.Size()
		return app.InputEvent{Action: app.ActionResize, Width: w, Height: h}, true
	}
	return app.InputEvent{}, false
}

func convertKey(e *tcell.EventKey) app.Action {
	switch e.Key() {
	case tcell.KeyUp:
		return app.ActionMoveUp
	case tcell.KeyDown:
		return app.ActionMoveDown
	case tcell.KeyEnter:
		return app.ActionConfirm
	case tcell.KeyCtrlC:
		return app.ActionQuit
	case tcell.KeyRune:
		if e.Modifiers()&(tcell.ModCtrl|tcell.ModAlt|tcell.ModMeta) != 0 {
			return app.ActionNone
		}
		switch e.Rune() {
		case 'k':
			return app.ActionMoveUp
		case 'j':
			return app.ActionMoveDown
		case 'r':
			return app.ActionRestart
		case 'q':
			return app.ActionQuit
		}
	}
	return app.ActionNone
}

// Draw renders frame and shows it.
func (t *Terminal) Draw(frame app.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	c := canvas{screen: t.screen}
	c.sidebar(frame)
	c.panes(frame)
	c.status(frame)
	t.screen.Show()
}
