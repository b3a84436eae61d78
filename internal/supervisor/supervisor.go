// Package supervisor owns every process slot of a flock set and applies
// lifecycle requests to them.
//
// A Supervisor is driven by a single goroutine, the event loop. It never
// blocks: spawns run on their own goroutines and report back through
// Spawns, and exits arrive through Exits. The loop feeds those messages to
// HandleSpawn and HandleExit, which are the only places background work
// changes slot state.
package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/flok/internal/config"
	"github.com/dshills/flok/internal/logging"
	"github.com/dshills/flok/internal/process"
)

// Errors returned by Supervisor operations.
var (
	ErrNoSuchFlock   = errors.New("no such flock")
	ErrNoSuchProcess = errors.New("no such process")
	ErrWatchDisabled = errors.New("watch is disabled for this process")
	ErrNotStarted    = errors.New("flock has not been started")
)

// Reason records why a restart was requested.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonManual
	ReasonWatch
)

// String returns a human-readable reason.
func (r Reason) String() string {
	switch r {
	case ReasonManual:
		return "manual"
	case ReasonWatch:
		return "watch"
	default:
		return "none"
	}
}

// Spawner starts one runtime. process.Spawn in production.
type Spawner func(process.Options) (*process.Runtime, error)

// SpawnResult reports the outcome of an asynchronous spawn.
type SpawnResult struct {
	ID      process.ID
	Token   uint64
	Runtime *process.Runtime
	Err     error
}

// Config configures a Supervisor.
type Config struct {
	Shell string
	Dir   string
	Env   []string

	// Grace is the SIGTERM to SIGKILL delay.
	Grace time.Duration

	// Rows and Cols size spawns before a pane size is known.
	Rows, Cols int

	Logger *logging.Logger
	Spawn  Spawner
}

type slot struct {
	id   process.ID
	def  config.Process

	rows, cols int

	// rt is the most recent instance; it stays after exit so its final
	// screen remains visible.
	rt *process.Runtime

	// starting is set while a spawn with token is in flight.
	starting bool
	token    uint64

	failed error

	// restartPending means exactly one spawn follows the current
	// instance's exit.
	restartPending bool
	pendingReason  Reason

	lastReason Reason
	restarts   int
}

func (sl *slot) phase() (process.Phase, bool) {
	switch {
	case sl.starting:
		return process.PhaseStarting, true
	case sl.failed != nil:
		return process.PhaseFailed, true
	case sl.rt != nil:
		return sl.rt.Status().Phase, true
	}
	return 0, false
}

type flockState struct {
	name    string
	started bool
	slots   []*slot
}

// Supervisor coordinates every process of a flock set. It is not safe for
// concurrent use.
type Supervisor struct {
	cfg    Config
	log    *logging.Logger
	flocks []*flockState

	selected  int
	nextToken uint64

	spawns chan SpawnResult
	exits  chan process.ExitEvent
}

// New creates a Supervisor with one idle slot per process of set.
func New(set *config.FlockSet, cfg Config) *Supervisor {
	if cfg.Spawn == nil {
		cfg.Spawn = process.Spawn
	}
	if cfg.Grace <= 0 {
		cfg.Grace = config.DefaultGraceTimeout
	}
	if cfg.Rows < 1 {
		cfg.Rows = 24
	}
	if cfg.Cols < 1 {
		cfg.Cols = 80
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	s := &Supervisor{
		cfg: cfg,
		log: cfg.Logger.WithComponent("supervisor"),
	}
	for fi, f := range set.Flocks {
		fs := &flockState{name: f.DisplayName}
		for pi, p := range f.Processes {
			fs.slots = append(fs.slots, &slot{
				id:   process.ID{Flock: fi, Process: pi},
				def:  p,
				rows: cfg.Rows,
				cols: cfg.Cols,
			})
		}
		s.flocks = append(s.flocks, fs)
	}

	// Every slot can have one spawn and one exit outstanding.
	n := set.ProcessCount()*2 + 8
	s.spawns = make(chan SpawnResult, n)
	s.exits = make(chan process.ExitEvent, n)
	return s
}

// Spawns delivers spawn outcomes for HandleSpawn.
func (s *Supervisor) Spawns() <-chan SpawnResult {
	return s.spawns
}

// Exits delivers instance exits for HandleExit.
func (s *Supervisor) Exits() <-chan process.ExitEvent {
	return s.exits
}

// FlockCount returns the number of flocks.
func (s *Supervisor) FlockCount() int {
	return len(s.flocks)
}

// Processes returns the slot ids of flock i in order.
func (s *Supervisor) Processes(i int) []process.ID {
	if i < 0 || i >= len(s.flocks) {
		return nil
	}
	ids := make([]process.ID, len(s.flocks[i].slots))
	for j, sl := range s.flocks[i].slots {
		ids[j] = sl.id
	}
	return ids
}

func (s *Supervisor) slot(id process.ID) *slot {
	if id.Flock < 0 || id.Flock >= len(s.flocks) {
		return nil
	}
	slots := s.flocks[id.Flock].slots
	if id.Process < 0 || id.Process >= len(slots) {
		return nil
	}
	return slots[id.Process]
}

func (s *Supervisor) slotLog(sl *slot) *logging.Logger {
	return s.log.WithProcess(s.flocks[sl.id.Flock].name, sl.def.DisplayName)
}

// Runtime returns the current instance of id, if any.
func (s *Supervisor) Runtime(id process.ID) *process.Runtime {
	if sl := s.slot(id); sl != nil {
		return sl.rt
	}
	return nil
}

// StartFlock spawns every process of flock i that is not already starting
// or alive, and marks the flock started. Processes of other flocks are not
// touched. It returns how many spawns were issued, so repeating the call
// on a running flock returns 0.
func (s *Supervisor) StartFlock(i int) (int, error) {
	if i < 0 || i >= len(s.flocks) {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchFlock, i)
	}
	f := s.flocks[i]
	f.started = true

	n := 0
	for _, sl := range f.slots {
		if phase, ok := sl.phase(); ok && (phase == process.PhaseStarting || phase.Live()) {
			continue
		}
		sl.restartPending = false
		s.spawn(sl)
		n++
	}
	s.log.Info("flock started", "flock", f.name, "spawned", n)
	return n, nil
}

func (s *Supervisor) spawn(sl *slot) {
	s.nextToken++
	sl.token = s.nextToken
	sl.starting = true
	sl.failed = nil

	opts := process.Options{
		ID:     sl.id,
		Spec:   sl.def,
		Shell:  s.cfg.Shell,
		Rows:   sl.rows,
		Cols:   sl.cols,
		Dir:    s.cfg.Dir,
		Env:    s.cfg.Env,
		Notify: s.exits,
		Logger: s.slotLog(sl),
	}
	token, spawn := sl.token, s.cfg.Spawn
	go func() {
		rt, err := spawn(opts)
		s.spawns <- SpawnResult{ID: opts.ID, Token: token, Runtime: rt, Err: err}
	}()
}

// HandleSpawn applies a spawn outcome. Outcomes of superseded spawns are
// dropped.
func (s *Supervisor) HandleSpawn(res SpawnResult) {
	sl := s.slot(res.ID)
	if sl == nil || !sl.starting || res.Token != sl.token {
		s.log.Warn("stale spawn result", "id", res.ID.String(), "token", res.Token)
		if res.Runtime != nil {
			res.Runtime.Terminate(s.cfg.Grace)
		}
		return
	}
	sl.starting = false
	log := s.slotLog(sl)

	if res.Err != nil {
		sl.failed = res.Err
		sl.restartPending = false
		log.Error("spawn failed", "error", res.Err)
		return
	}

	sl.rt = res.Runtime
	// The pane may have been resized while the spawn was in flight.
	if rows, cols := sl.rt.Buffer().Size(); rows != sl.rows || cols != sl.cols {
		if err := sl.rt.Resize(sl.rows, sl.cols); err != nil {
			log.Warn("resize after spawn", "error", err)
		}
	}
	if sl.restartPending {
		// Restart requested during the spawn; the exit will respawn.
		sl.rt.Terminate(s.cfg.Grace)
	}
}

// HandleExit applies an instance exit. It returns false for exits of
// instances that no longer occupy their slot.
func (s *Supervisor) HandleExit(ev process.ExitEvent) bool {
	sl := s.slot(ev.ID)
	if sl == nil || sl.rt == nil || sl.rt.Instance() != ev.Instance {
		s.log.Debug("stale exit event", "id", ev.ID.String(), "instance", ev.Instance)
		return false
	}

	log := s.slotLog(sl)
	log.Info("process exited",
		"code", ev.Status.ExitCode,
		"signal", ev.Status.Signal,
		"forced", ev.Status.Forced)

	if sl.restartPending && !sl.starting {
		sl.restartPending = false
		sl.lastReason = sl.pendingReason
		sl.restarts++
		log.Info("restarting", "reason", sl.lastReason.String())
		s.spawn(sl)
	}
	return true
}

// RestartProcess replaces the current instance of id. A running instance
// is terminated and respawned once its exit is observed; requests made
// while that is in progress are absorbed into the same single respawn.
// Watch-triggered requests are refused for processes without watch and
// for flocks that were never started.
func (s *Supervisor) RestartProcess(id process.ID, reason Reason) error {
	sl := s.slot(id)
	if sl == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchProcess, id)
	}
	if reason == ReasonWatch {
		if sl.def.Watch.Disabled() {
			return ErrWatchDisabled
		}
		if !s.flocks[id.Flock].started {
			return ErrNotStarted
		}
	}

	if sl.restartPending {
		return nil
	}
	if sl.starting {
		sl.restartPending = true
		sl.pendingReason = reason
		return nil
	}

	if sl.rt != nil && sl.failed == nil {
		switch sl.rt.Status().Phase {
		case process.PhaseRunning:
			sl.restartPending = true
			sl.pendingReason = reason
			sl.rt.Terminate(s.cfg.Grace)
			return nil
		case process.PhaseTerminating:
			sl.restartPending = true
			sl.pendingReason = reason
			return nil
		}
	}

	// Exited, failed or never started.
	sl.lastReason = reason
	sl.restarts++
	s.flocks[id.Flock].started = true
	s.slotLog(sl).Info("restarting", "reason", reason.String())
	s.spawn(sl)
	return nil
}

// RestartFlock restarts every process of flock i.
func (s *Supervisor) RestartFlock(i int, reason Reason) error {
	if i < 0 || i >= len(s.flocks) {
		return fmt.Errorf("%w: %d", ErrNoSuchFlock, i)
	}
	var errs []error
	for _, sl := range s.flocks[i].slots {
		if err := s.RestartProcess(sl.id, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resize records the pane size of id and resizes its live instance.
func (s *Supervisor) Resize(id process.ID, rows, cols int) error {
	sl := s.slot(id)
	if sl == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchProcess, id)
	}
	if rows < 1 || cols < 1 {
		return fmt.Errorf("resize %s: invalid size %dx%d", id, rows, cols)
	}
	if sl.rows == rows && sl.cols == cols {
		return nil
	}
	sl.rows, sl.cols = rows, cols
	if sl.rt != nil {
		return sl.rt.Resize(rows, cols)
	}
	return nil
}

// PaneSize returns the size recorded for id.
func (s *Supervisor) PaneSize(id process.ID) (rows, cols int) {
	if sl := s.slot(id); sl != nil {
		return sl.rows, sl.cols
	}
	return 0, 0
}

// Selected returns the selected flock index.
func (s *Supervisor) Selected() int {
	return s.selected
}

// Select makes flock i the selected one. Selection is display state only.
func (s *Supervisor) Select(i int) error {
	if i < 0 || i >= len(s.flocks) {
		return fmt.Errorf("%w: %d", ErrNoSuchFlock, i)
	}
	s.selected = i
	return nil
}

// MoveSelection moves the selection by delta, wrapping around.
func (s *Supervisor) MoveSelection(delta int) {
	n := len(s.flocks)
	if n == 0 {
		return
	}
	s.selected = ((s.selected+delta)%n + n) % n
}

// WatchTarget is a process eligible for a watch-triggered restart.
type WatchTarget struct {
	ID       process.ID
	Debounce time.Duration
}

// WatchTargets lists watch-enabled processes of started flocks that do not
// already have a restart pending.
func (s *Supervisor) WatchTargets() []WatchTarget {
	var out []WatchTarget
	for _, f := range s.flocks {
		if !f.started {
			continue
		}
		for _, sl := range f.slots {
			if sl.def.Watch.Disabled() || sl.restartPending {
				continue
			}
			out = append(out, WatchTarget{ID: sl.id, Debounce: sl.def.Watch.Debounce})
		}
	}
	return out
}

// WatchEnabled lists every watch-enabled process with its debounce.
func (s *Supervisor) WatchEnabled() []WatchTarget {
	var out []WatchTarget
	for _, f := range s.flocks {
		for _, sl := range f.slots {
			if !sl.def.Watch.Disabled() {
				out = append(out, WatchTarget{ID: sl.id, Debounce: sl.def.Watch.Debounce})
			}
		}
	}
	return out
}
