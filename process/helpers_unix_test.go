//go:build !windows

package process_test

import (
	"os"
	"syscall"
)

func stopSelf() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGSTOP)
}
