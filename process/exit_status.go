package process

import (
	"fmt"
	"os"
	"syscall"
)

// Reason describes why a process changed state.
type Reason int

const (
	ReasonUncategorized Reason = iota
	ReasonExited
	ReasonKilled
	ReasonDumped
	ReasonStopped
	ReasonTrapped
	ReasonContinued
)

var reasonNames = []string{
	"uncategorized",
	"exited",
	"killed",
	"dumped",
	"stopped",
	"trapped",
	"continued",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// ExitStatus is the state a probed process was found in.
//
// Value holds the exit code when the process exited normally, and the
// signal (or stop signal) number otherwise. Terminated is true whenever
// the state change was anything other than a normal exit; Reason keeps the
// finer grained cause that Terminated collapses.
type ExitStatus struct {
	Value      int    `json:"value"`
	Terminated bool   `json:"terminated"`
	Reason     Reason `json:"-"`
}

func exited(code int) ExitStatus {
	return ExitStatus{Value: code, Reason: ReasonExited}
}

func terminatedBy(reason Reason, value int) ExitStatus {
	return ExitStatus{Value: value, Terminated: true, Reason: reason}
}

// Success reports whether the process exited normally with code 0.
func (s ExitStatus) Success() bool {
	code, ok := s.Code()
	return ok && code == 0
}

// Code returns the exit code if the process exited normally.
func (s ExitStatus) Code() (int, bool) {
	if s.Reason != ReasonExited {
		return 0, false
	}
	return s.Value, true
}

// Signal returns the signal that killed the process, if any.
func (s ExitStatus) Signal() (Signal, bool) {
	if s.Reason != ReasonKilled && s.Reason != ReasonDumped {
		return 0, false
	}
	return Signal(s.Value), true
}

// StoppedSignal returns the signal that stopped the process, if any.
func (s ExitStatus) StoppedSignal() (Signal, bool) {
	if s.Reason != ReasonStopped {
		return 0, false
	}
	return Signal(s.Value), true
}

func (s ExitStatus) CoreDumped() bool {
	return s.Reason == ReasonDumped
}

func (s ExitStatus) Continued() bool {
	return s.Reason == ReasonContinued
}

// ExitCode folds the status into a single shell style exit code: the exit
// code itself, or 128 plus the signal number.
func (s ExitStatus) ExitCode() int {
	if code, ok := s.Code(); ok {
		return code
	}
	if s.Reason == ReasonContinued || s.Reason == ReasonUncategorized {
		return -1
	}
	return 128 + s.Value
}

func (s ExitStatus) String() string {
	switch s.Reason {
	case ReasonExited:
		return fmt.Sprintf("exit code: %d", s.Value)
	case ReasonKilled:
		return fmt.Sprintf("signal: %d (%s)", s.Value, SignalString(Signal(s.Value)))
	case ReasonDumped:
		return fmt.Sprintf("signal: %d (%s) (core dumped)", s.Value, SignalString(Signal(s.Value)))
	case ReasonStopped:
		return fmt.Sprintf("stopped (not terminated) by signal: %d", s.Value)
	case ReasonTrapped:
		return "trapped"
	case ReasonContinued:
		return "continued"
	default:
		return fmt.Sprintf("uncategorized wait status: %d", s.Value)
	}
}

// statusFromProcessState converts the result of a destructive wait.
func statusFromProcessState(ps *os.ProcessState) ExitStatus {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return exited(ps.ExitCode())
	}

	switch {
	case ws.Exited():
		return exited(ws.ExitStatus())
	case ws.Signaled():
		if ws.CoreDump() {
			return terminatedBy(ReasonDumped, int(ws.Signal()))
		}
		return terminatedBy(ReasonKilled, int(ws.Signal()))
	case ws.Stopped():
		return terminatedBy(ReasonStopped, int(ws.StopSignal()))
	case ws.Continued():
		return terminatedBy(ReasonContinued, ps.ExitCode())
	default:
		return terminatedBy(ReasonUncategorized, ps.ExitCode())
	}
}
