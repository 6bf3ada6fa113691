//go:build !windows

package process

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Terminate kills pid with SIGKILL. A pid that no longer exists is
// reported as ErrNotFound.
func Terminate(pid int) error {
	return signalPid(pid, SIGKILL)
}

func signalPid(pid int, sig Signal) error {
	if err := unix.Kill(pid, syscall.Signal(sig)); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("sending %s to pid %d: %w", SignalString(sig), pid, ErrNotFound)
		}
		return fmt.Errorf("sending %s to pid %d: %w", SignalString(sig), pid, err)
	}
	return nil
}
