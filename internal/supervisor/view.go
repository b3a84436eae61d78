package supervisor

import (
	"github.com/dshills/flok/internal/config"
	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/terminal"
)

// Snapshot is a render-ready copy of supervisor state.
type Snapshot struct {
	Flocks   []FlockView
	Selected int
}

// FlockView describes one flock.
type FlockView struct {
	Index    int
	Name     string
	Selected bool
	Started  bool
	// Running counts live instances.
	Running int

	// Processes carries screen contents only for the selected flock.
	Processes []ProcessView
}

// ProcessView describes one slot.
type ProcessView struct {
	ID    process.ID
	Name  string
	Watch config.Watch

	// Idle is set for slots that were never spawned.
	Idle   bool
	Status process.Status
	// Restarting is set from the restart request until the replacement
	// instance is running.
	Restarting bool
	LastReason Reason
	Restarts   int
	Err        error

	Rows, Cols int
	Grid       terminal.Grid
	Title      string
}

// Snapshot copies the state of every flock and the screens of the selected
// one.
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{Selected: s.selected, Flocks: make([]FlockView, len(s.flocks))}
	for fi, f := range s.flocks {
		fv := FlockView{
			Index:    fi,
			Name:     f.name,
			Selected: fi == s.selected,
			Started:  f.started,
		}
		for _, sl := range f.slots {
			if sl.rt != nil && sl.rt.Status().Phase.Live() {
				fv.Running++
			}
			if fv.Selected {
				fv.Processes = append(fv.Processes, s.view(sl))
			}
		}
		snap.Flocks[fi] = fv
	}
	return snap
}

func (s *Supervisor) view(sl *slot) ProcessView {
	pv := ProcessView{
		ID:         sl.id,
		Name:       sl.def.DisplayName,
		Watch:      sl.def.Watch,
		Restarting: sl.restartPending || (sl.starting && sl.rt != nil),
		LastReason: sl.lastReason,
		Restarts:   sl.restarts,
		Rows:       sl.rows,
		Cols:       sl.cols,
	}

	if sl.rt != nil {
		pv.Status = sl.rt.Status()
		pv.Grid = sl.rt.Snapshot()
		pv.Title = sl.rt.Buffer().Title()
	}
	switch {
	case sl.starting:
		if sl.rt == nil {
			pv.Status = process.Status{Phase: process.PhaseStarting}
		}
	case sl.failed != nil:
		pv.Status.Phase = process.PhaseFailed
		pv.Err = sl.failed
	case sl.rt == nil:
		pv.Idle = true
	}
	return pv
}
