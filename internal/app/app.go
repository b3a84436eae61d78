// Package app runs the event loop that ties the supervisor, the change
// watcher and the terminal backend together.
//
// Every state change happens on the loop goroutine. Background work
// (spawns, exits, file events, input polling) only sends messages, and
// each message is handled to completion before the next one is read.
package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dshills/flok/internal/config"
	"github.com/dshills/flok/internal/logging"
	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/supervisor"
	"github.com/dshills/flok/internal/watcher"
)

// WatcherFactory creates the change watcher at startup.
type WatcherFactory func() (watcher.Watcher, error)

// FSNotify is the production WatcherFactory.
func FSNotify() (watcher.Watcher, error) {
	w, err := watcher.NewFSNotifyWatcher()
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Options configures the application.
type Options struct {
	// Root is the watched directory; empty means the working directory.
	Root string

	// RedrawInterval is the period of the render tick.
	RedrawInterval time.Duration

	// NewWatcher creates the change watcher; nil means FSNotify.
	NewWatcher WatcherFactory

	Logger *logging.Logger
}

// Application is the event loop and the state only it touches.
type Application struct {
	sup     *supervisor.Supervisor
	backend Backend
	opts    Options
	log     *logging.Logger

	watch    watcher.Watcher
	debounce *watcher.Debouncer[process.ID]
	timer    *time.Timer
	warning  string
	layout   Layout

	running atomic.Bool
}

// New creates an Application. Nothing runs until Run.
func New(sup *supervisor.Supervisor, b Backend, opts Options) *Application {
	if opts.RedrawInterval <= 0 {
		opts.RedrawInterval = config.DefaultRedrawInterval
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.NewWatcher == nil {
		opts.NewWatcher = FSNotify
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Application{
		sup:      sup,
		backend:  b,
		opts:     opts,
		log:      opts.Logger.WithComponent("app"),
		debounce: watcher.NewDebouncer[process.ID](),
	}
}

// Run takes over the terminal and processes messages until the user quits
// (ErrQuit) or ctx is cancelled (nil). Only a backend failure is fatal;
// without a watcher the loop runs with automatic restarts disabled.
// Children are left running when Run returns.
func (app *Application) Run(ctx context.Context) error {
	if app.backend == nil {
		return ErrNoBackend
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.backend.Init(); err != nil {
		return &InitError{Component: "backend", Err: err}
	}
	defer app.backend.Shutdown()

	app.startWatcher()
	defer app.stopWatcher()

	for _, t := range app.sup.WatchEnabled() {
		app.debounce.Register(t.ID, t.Debounce)
	}

	app.timer = time.NewTimer(time.Hour)
	app.timer.Stop()
	defer app.timer.Stop()

	ticker := time.NewTicker(app.opts.RedrawInterval)
	defer ticker.Stop()

	app.resize(app.backend.Size())
	app.draw()

	return app.loop(ctx, ticker.C)
}

func (app *Application) startWatcher() {
	w, err := app.opts.NewWatcher()
	if err == nil {
		err = w.WatchRecursive(app.opts.Root)
		var inc *watcher.IncompleteError
		if errors.As(err, &inc) {
			app.watch = w
			app.degrade(err)
			return
		}
		if err != nil {
			w.Close()
		}
	}
	if err != nil {
		app.warning = "file watching unavailable, automatic restarts disabled: " + err.Error()
		app.log.Warn("watcher unavailable", "root", app.opts.Root, "error", err)
		return
	}
	app.watch = w
	app.log.Info("watching", "root", app.opts.Root)
}

// degrade records a watcher failure that leaves watching partly working.
// Only the first one is shown.
func (app *Application) degrade(err error) {
	app.log.Warn("watcher error", "root", app.opts.Root, "error", err)
	if app.warning == "" {
		app.warning = "file watching incomplete, some changes will not trigger restarts: " + err.Error()
	}
}

func (app *Application) stopWatcher() {
	if app.watch == nil {
		return
	}
	if err := app.watch.Close(); err != nil {
		app.log.Warn("close watcher", "error", err)
	}
}

// Watching reports whether change detection is active.
func (app *Application) Watching() bool {
	return app.watch != nil
}

// IsRunning returns true while Run is executing.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
