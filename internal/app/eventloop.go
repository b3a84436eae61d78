package app

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/supervisor"
	"github.com/dshills/flok/internal/watcher"
)

// loop is the single consumer of every message source.
func (app *Application) loop(ctx context.Context, redraw <-chan time.Time) error {
	input := app.backend.Events()

	var (
		changes <-chan watcher.Event
		errs    <-chan error
	)
	if app.watch != nil {
		changes = app.watch.Events()
		errs = app.watch.Errors()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-input:
			if !ok {
				return ErrQuit
			}
			if err := app.handleInput(ev); err != nil {
				return err
			}
			app.draw()

		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			app.handleChange(ev, time.Now())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			app.degrade(err)
			app.draw()

		case now := <-app.timer.C:
			app.handleDebounce(now)

		case res := <-app.sup.Spawns():
			app.sup.HandleSpawn(res)

		case ev := <-app.sup.Exits():
			app.sup.HandleExit(ev)

		case <-redraw:
			app.draw()
		}
	}
}

// handleInput applies one user action. It returns ErrQuit to stop.
func (app *Application) handleInput(ev InputEvent) error {
	switch ev.Action {
	case ActionMoveUp:
		app.sup.MoveSelection(-1)
	case ActionMoveDown:
		app.sup.MoveSelection(1)
	case ActionConfirm:
		sel := app.sup.Selected()
		if _, err := app.sup.StartFlock(sel); err != nil {
			app.log.Error("start flock", "flock", sel, "error", err)
		}
	case ActionRestart:
		sel := app.sup.Selected()
		if err := app.sup.RestartFlock(sel, supervisor.ReasonManual); err != nil {
			app.log.Error("restart flock", "flock", sel, "error", err)
		}
	case ActionResize:
		app.resize(ev.Width, ev.Height)
	case ActionQuit:
		app.log.Info("quit requested")
		return ErrQuit
	}
	return nil
}

// handleChange arms the debounce of every eligible process.
func (app *Application) handleChange(ev watcher.Event, now time.Time) {
	armed := 0
	for _, t := range app.sup.WatchTargets() {
		if app.debounce.Touch(t.ID, now) {
			armed++
		}
	}
	if armed > 0 {
		app.log.Debug("change detected", "path", ev.Path, "op", ev.Op.String(), "armed", armed)
	}
	app.schedule(now)
}

// handleDebounce restarts every process whose quiet period has elapsed.
func (app *Application) handleDebounce(now time.Time) {
	for _, id := range app.debounce.Expired(now) {
		err := app.sup.RestartProcess(id, supervisor.ReasonWatch)
		switch {
		case err == nil:
		case errors.Is(err, supervisor.ErrWatchDisabled), errors.Is(err, supervisor.ErrNotStarted):
			app.log.Debug("watch restart skipped", "id", id.String(), "reason", err)
		default:
			app.log.Error("watch restart", "id", id.String(), "error", err)
		}
	}
	app.schedule(now)
}

// schedule points the loop timer at the earliest pending deadline.
func (app *Application) schedule(now time.Time) {
	at, ok := app.debounce.NextDeadline()
	if !ok {
		app.timer.Stop()
		return
	}
	app.timer.Reset(max(at.Sub(now), 0))
}

// resize recomputes the layout and resizes every pane whose size changed.
func (app *Application) resize(width, height int) {
	app.layout = NewLayout(width, height)
	for fi := range app.sup.FlockCount() {
		ids := app.sup.Processes(fi)
		for i, pane := range app.layout.Panes(len(ids)) {
			rows, cols := PaneSize(pane)
			if err := app.sup.Resize(ids[i], rows, cols); err != nil {
				app.log.Warn("resize", "id", ids[i].String(), "error", err)
			}
		}
	}
}

func (app *Application) draw() {
	app.backend.Draw(Frame{
		Snapshot: app.sup.Snapshot(),
		Layout:   app.layout,
		Warning:  app.warning,
		Watching: app.watch != nil,
	})
}

// PaneFor returns the pane of id in the current layout.
func (app *Application) PaneFor(id process.ID) (Rect, bool) {
	panes := app.layout.Panes(len(app.sup.Processes(id.Flock)))
	if id.Process < 0 || id.Process >= len(panes) {
		return Rect{}, false
	}
	return panes[id.Process], true
}
