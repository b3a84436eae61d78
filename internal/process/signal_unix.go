//go:build unix

package process

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalGroup delivers sig to every member of the process group led by
// pgid. A group that no longer exists is not an error.
func signalGroup(pgid int, sig unix.Signal) error {
	if pgid <= 0 {
		return ErrNotRunning
	}
	if err := unix.Kill(-pgid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// groupAlive reports whether any member of the group still exists.
func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := unix.Kill(-pgid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// exitDetails extracts the exit code and terminating signal.
func exitDetails(sys any, code int) (int, string) {
	ws, ok := sys.(syscall.WaitStatus)
	if !ok {
		return code, ""
	}
	if ws.Signaled() {
		return -1, unix.SignalName(unix.Signal(ws.Signal()))
	}
	return ws.ExitStatus(), ""
}
