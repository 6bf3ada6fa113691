//go:build !windows

package process

import (
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalString returns the conventional name of the signal, such as
// SIGKILL, or its number when the platform has no name for it.
func SignalString(s Signal) string {
	if name := unix.SignalName(syscall.Signal(s)); name != "" {
		return name
	}
	return strconv.Itoa(int(s))
}

func signalByName(name string) (Signal, bool) {
	n := unix.SignalNum(name)
	if n == 0 {
		return 0, false
	}
	return Signal(n), true
}
