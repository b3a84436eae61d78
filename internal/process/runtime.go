package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/dshills/flok/internal/config"
	"github.com/dshills/flok/internal/logging"
	"github.com/dshills/flok/internal/terminal"
)

const (
	// readChunk bounds how much output is parsed per buffer lock.
	readChunk = 8 * 1024

	// DefaultKillGrace is how long a child may survive SIGKILL before it is
	// flagged unresponsive.
	DefaultKillGrace = time.Second

	// DefaultDrainTimeout bounds the wait for trailing output after the
	// child is reaped.
	DefaultDrainTimeout = 250 * time.Millisecond

	// groupPoll is how often a stopping group is checked for survivors.
	groupPoll = 25 * time.Millisecond
)

// Options configures Spawn.
type Options struct {
	ID    ID
	Spec  config.Process
	Shell string

	Rows, Cols int

	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the base environment; nil means os.Environ(). TERM is always
	// set to xterm.
	Env []string

	// Notify receives the ExitEvent of this instance.
	Notify chan<- ExitEvent

	Logger       *logging.Logger
	KillGrace    time.Duration
	DrainTimeout time.Duration
}

// Runtime is one spawned instance of a process definition. It owns the child,
// its pseudo-terminal and its screen buffer.
type Runtime struct {
	id       ID
	instance string
	spec     config.Process

	buf    *terminal.Buffer
	pty    terminal.PTY
	cmd    *exec.Cmd
	script string
	log    *logging.Logger
	notify chan<- ExitEvent

	killGrace time.Duration
	drain     time.Duration

	mu        sync.RWMutex
	status    Status
	ptyClosed bool
	// stopped is closed when the terminator is done with the group; nil
	// until Terminate.
	stopped chan struct{}
	// stuck is set when group members outlived SIGKILL.
	stuck bool

	readerDone chan struct{}
	reaped     chan struct{}
	done       chan struct{}
}

// Spawn starts opts.Spec on a new pseudo-terminal of opts.Rows by opts.Cols
// and begins reading its output. It blocks for the fork and exec only.
func Spawn(opts Options) (*Runtime, error) {
	if strings.TrimSpace(opts.Spec.Command) == "" {
		return nil, &SpawnError{ID: opts.ID, Op: "validate", Err: ErrEmptyCommand}
	}
	buf, err := terminal.NewBuffer(opts.Rows, opts.Cols)
	if err != nil {
		return nil, &SpawnError{ID: opts.ID, Op: "buffer", Err: err}
	}
	shell := opts.Shell
	if shell == "" {
		shell = ResolveShell(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	script, err := writeScript(opts.Spec.Command)
	if err != nil {
		return nil, &SpawnError{ID: opts.ID, Op: "script", Err: err}
	}

	cmd := exec.Command(shell, script)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts.Env)

	pty, err := terminal.StartPTY(cmd, opts.Rows, opts.Cols)
	if err != nil {
		os.Remove(script)
		return nil, &SpawnError{ID: opts.ID, Op: "start", Err: err}
	}

	r := &Runtime{
		id:         opts.ID,
		instance:   uuid.NewString(),
		spec:       opts.Spec,
		buf:        buf,
		pty:        pty,
		cmd:        cmd,
		script:     script,
		notify:     opts.Notify,
		killGrace:  orDefault(opts.KillGrace, DefaultKillGrace),
		drain:      orDefault(opts.DrainTimeout, DefaultDrainTimeout),
		readerDone: make(chan struct{}),
		reaped:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.log = log.With("instance", r.instance, "pid", cmd.Process.Pid)
	r.status = Status{
		Phase:     PhaseRunning,
		Instance:  r.instance,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	r.log.Info("process started", "shell", shell, "rows", opts.Rows, "cols", opts.Cols)

	go r.readLoop()
	go r.monitor()
	return r, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func buildEnv(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, "TERM=") {
			env = append(env, kv)
		}
	}
	return append(env, "TERM=xterm")
}

// readLoop applies output chunks to the buffer until end of stream.
func (r *Runtime) readLoop() {
	defer close(r.readerDone)

	chunk := make([]byte, readChunk)
	for {
		n, err := r.pty.Read(chunk)
		if n > 0 {
			r.buf.Write(chunk[:n])
		}
		if err != nil {
			// Linux reports EIO once the last slave descriptor closes.
			if !errors.Is(err, io.EOF) && !errors.Is(err, unix.EIO) && !errors.Is(err, os.ErrClosed) {
				r.log.Debug("pty read ended", "error", err)
			}
			return
		}
	}
}

// monitor reaps the child, releases the pseudo-terminal and script, and
// reports the exit.
func (r *Runtime) monitor() {
	waitErr := r.cmd.Wait()
	close(r.reaped)

	// Let the reader catch trailing output; background grandchildren may
	// hold the slave open indefinitely, so the wait is bounded.
	select {
	case <-r.readerDone:
	case <-time.After(r.drain):
	}

	r.mu.Lock()
	r.ptyClosed = true
	r.pty.Close()
	r.mu.Unlock()

	select {
	case <-r.readerDone:
	case <-time.After(r.drain):
		r.log.Warn("pty reader still blocked after close")
	}
	if err := os.Remove(r.script); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn("remove script", "path", r.script, "error", err)
	}

	// A stopping instance is not reported until the rest of its group is
	// gone or has outlived SIGKILL.
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped != nil {
		<-stopped
	}

	code := -1
	var sys any
	if ps := r.cmd.ProcessState; ps != nil {
		code = ps.ExitCode()
		sys = ps.Sys()
	}
	code, sig := exitDetails(sys, code)
	survivors := groupAlive(r.cmd.Process.Pid)

	r.mu.Lock()
	r.status.Phase = PhaseExited
	r.status.ExitedAt = time.Now()
	r.status.ExitCode = code
	r.status.Signal = sig
	r.status.Unresponsive = r.stuck && survivors
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		r.status.Err = waitErr
	}
	st := r.status
	r.mu.Unlock()

	r.log.Info("process exited", "code", code, "signal", sig, "forced", st.Forced)
	close(r.done)

	if r.notify != nil {
		r.notify <- ExitEvent{ID: r.id, Instance: r.instance, Status: st}
	}
}

// Terminate starts a graceful stop: SIGTERM to the process group, then
// SIGKILL to the group if any member is still alive after grace. It returns
// immediately; the outcome arrives as the ExitEvent, which is held until
// the whole group is gone or flagged unresponsive. It returns false when
// the instance is not running, including when a stop is already in
// progress.
func (r *Runtime) Terminate(grace time.Duration) bool {
	r.mu.Lock()
	if r.status.Phase != PhaseRunning {
		r.mu.Unlock()
		return false
	}
	r.status.Phase = PhaseTerminating
	r.status.Deadline = time.Now().Add(grace)
	r.stopped = make(chan struct{})
	pid := r.status.PID
	stopped := r.stopped
	r.mu.Unlock()

	go r.terminate(pid, grace, stopped)
	return true
}

func (r *Runtime) terminate(pgid int, grace time.Duration, stopped chan struct{}) {
	defer close(stopped)

	r.log.Info("terminating", "grace", grace)
	if err := signalGroup(pgid, unix.SIGTERM); err != nil {
		r.log.Error("send SIGTERM", "error", err)
		r.mu.Lock()
		r.status.Unresponsive = true
		r.mu.Unlock()
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	if waitGroupExit(pgid, deadline.C) {
		return
	}

	r.mu.Lock()
	r.status.Forced = true
	r.mu.Unlock()

	select {
	case <-r.reaped:
		r.log.Warn("grace period elapsed with group members alive, sending SIGKILL")
	default:
		r.log.Warn("grace period elapsed, sending SIGKILL")
	}
	if err := signalGroup(pgid, unix.SIGKILL); err != nil {
		r.log.Error("send SIGKILL", "error", err)
	}

	kill := time.NewTimer(r.killGrace)
	defer kill.Stop()
	if waitGroupExit(pgid, kill.C) {
		return
	}

	r.mu.Lock()
	r.stuck = true
	if r.status.Phase == PhaseTerminating {
		r.status.Unresponsive = true
	}
	r.mu.Unlock()
	r.log.Warn("process group unresponsive after SIGKILL")
}

// waitGroupExit polls until no member of the group remains, including an
// unreaped leader, or until stop fires. It reports whether the group is
// gone.
func waitGroupExit(pgid int, stop <-chan time.Time) bool {
	tick := time.NewTicker(groupPoll)
	defer tick.Stop()
	for {
		if !groupAlive(pgid) {
			return true
		}
		select {
		case <-stop:
			return !groupAlive(pgid)
		case <-tick.C:
		}
	}
}

// Resize changes the pseudo-terminal window size and the buffer together.
// After the child has exited only the buffer is reshaped.
func (r *Runtime) Resize(rows, cols int) error {
	return r.buf.Resize(rows, cols, func(rows, cols int) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.ptyClosed {
			return nil
		}
		return r.pty.Resize(rows, cols)
	})
}

// ID returns the slot this instance occupies.
func (r *Runtime) ID() ID {
	return r.id
}

// Instance returns the unique id of this instance.
func (r *Runtime) Instance() string {
	return r.instance
}

// Spec returns the process definition the instance was started from.
func (r *Runtime) Spec() config.Process {
	return r.spec
}

// Status returns a copy of the lifecycle state.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Buffer returns the screen buffer.
func (r *Runtime) Buffer() *terminal.Buffer {
	return r.buf
}

// Snapshot copies the screen for rendering.
func (r *Runtime) Snapshot() terminal.Grid {
	return r.buf.Snapshot()
}

// Done is closed once the instance has exited and released its resources.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}
