package process

import (
	"fmt"
	"time"
)

// ID identifies a process slot by its position in the flock set.
type ID struct {
	Flock   int
	Process int
}

// String returns "flock/process" indexes.
func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.Flock, id.Process)
}

// Phase is the lifecycle phase of one instance.
type Phase int

const (
	// PhaseStarting means a spawn is in flight.
	PhaseStarting Phase = iota
	// PhaseRunning means the child is alive and its output is read.
	PhaseRunning
	// PhaseTerminating means SIGTERM was sent and the grace period runs.
	PhaseTerminating
	// PhaseExited means the child was reaped and its resources released.
	PhaseExited
	// PhaseFailed means the spawn itself failed.
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseTerminating:
		return "terminating"
	case PhaseExited:
		return "exited"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Live reports whether the instance still owns a child process.
func (p Phase) Live() bool {
	return p == PhaseRunning || p == PhaseTerminating
}

// Status is a point-in-time copy of an instance's lifecycle state.
type Status struct {
	Phase    Phase
	Instance string
	PID      int

	StartedAt time.Time
	// Deadline is when SIGKILL follows SIGTERM; set while terminating.
	Deadline time.Time
	ExitedAt time.Time

	// ExitCode is -1 when the child was killed by a signal.
	ExitCode int
	// Signal names the terminating signal, if any.
	Signal string
	// Forced is set once SIGKILL was sent.
	Forced bool
	// Unresponsive is set when the child or other members of its group
	// survived SIGKILL past the kill grace, or when SIGTERM could not be
	// delivered to the group. It stays set on exit only while survivors
	// remain.
	Unresponsive bool

	Err error
}

// Success reports whether the instance exited with status 0.
func (s Status) Success() bool {
	return s.Phase == PhaseExited && s.ExitCode == 0 && s.Signal == ""
}

// ExitEvent is delivered once per instance after it is reaped and its
// pseudo-terminal is closed.
type ExitEvent struct {
	ID       ID
	Instance string
	Status   Status
}
