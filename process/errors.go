package process

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrNotWaitable is matched by probe errors for a pid that is not a
	// waitable child of the caller: not a child, already reaped, or gone.
	ErrNotWaitable = errors.New("process is not a waitable child")

	// ErrInterrupted is matched by probe errors for a wait that was
	// interrupted before the process changed state. Callers may retry.
	ErrInterrupted = errors.New("wait interrupted")

	ErrNotFound               = errors.New("no such process")
	ErrTimeLimitExceeded      = errors.New("process time limit exceeded")
	ErrMemoryLimitUnsupported = errors.New("memory limits are not supported on this platform")
	ErrNotStarted             = errors.New("process has not been started")
)

// ErrorKind classifies a failed probe.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotWaitable
	KindInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotWaitable:
		return "not waitable"
	case KindInterrupted:
		return "interrupted"
	default:
		return "other"
	}
}

// ProbeError is returned when the operating system refuses a status probe.
// The native error is kept in Err.
type ProbeError struct {
	Pid  int
	Kind ErrorKind
	Err  error
}

func newProbeError(pid int, err error) *ProbeError {
	kind := KindOther

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECHILD, syscall.ESRCH:
			kind = KindNotWaitable
		case syscall.EINTR:
			kind = KindInterrupted
		}
	}

	return &ProbeError{Pid: pid, Kind: kind, Err: err}
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing process %d: %v", e.Pid, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func (e *ProbeError) Is(target error) bool {
	switch target {
	case ErrNotWaitable:
		return e.Kind == KindNotWaitable
	case ErrInterrupted:
		return e.Kind == KindInterrupted
	}
	return false
}

// Errno returns the native error code, or 0 if the failure did not come
// from the operating system.
func (e *ProbeError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}
