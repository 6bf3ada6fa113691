package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetMemoryLimit caps the address space of a running process, in bytes.
// The process keeps running; allocations past the limit fail.
func SetMemoryLimit(pid int, limit uint64) error {
	rlim := unix.Rlimit{Cur: limit, Max: limit}
	if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rlim, nil); err != nil {
		return fmt.Errorf("setting memory limit on pid %d: %w", pid, err)
	}
	return nil
}
