package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Terminate kills pid. A pid that no longer exists is reported as
// ErrNotFound.
func Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding pid %d: %w", pid, ErrNotFound)
	}
	if err := p.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("killing pid %d: %w", pid, ErrNotFound)
		}
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}
	return nil
}

// Sending Interrupt on Windows is not implemented, so anything other than a
// kill falls back to ending the process tree with TASKKILL.
// https://golang.org/src/os/exec.go?s=3842:3884#L110
func signalPid(pid int, sig Signal) error {
	if sig == SIGKILL {
		return Terminate(pid)
	}
	return exec.Command("CMD", "/C", "TASKKILL", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
