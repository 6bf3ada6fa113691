//go:build linux && !mips && !mipsle && !mips64 && !mips64le

package process

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// si_code values reported with SIGCHLD.
const (
	cldExited    = 1
	cldKilled    = 2
	cldDumped    = 3
	cldTrapped   = 4
	cldStopped   = 5
	cldContinued = 6
)

// sigchldInfo overlays the SIGCHLD member of siginfo_t. The union after the
// three header words is pointer aligned.
type sigchldInfo struct {
	Signo  int32
	Errno  int32
	Code   int32
	_      [unsafe.Sizeof(uintptr(0)) - 4]byte
	Pid    int32
	UID    uint32
	Status int32
}

// WaitID probes with waitid(2) and WNOWAIT, leaving the child waitable.
type WaitID struct{}

func (WaitID) Probe(pid int) (ExitStatus, error) {
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WSTOPPED|unix.WNOWAIT, nil)
	if err != nil {
		return ExitStatus{}, newProbeError(pid, err)
	}

	chld := (*sigchldInfo)(unsafe.Pointer(&info))
	return statusFromSiginfo(chld.Code, chld.Status), nil
}

func statusFromSiginfo(code, status int32) ExitStatus {
	switch code {
	case cldExited:
		return exited(int(status))
	case cldKilled:
		return terminatedBy(ReasonKilled, int(status))
	case cldDumped:
		return terminatedBy(ReasonDumped, int(status))
	case cldTrapped:
		return terminatedBy(ReasonTrapped, int(status))
	case cldStopped:
		return terminatedBy(ReasonStopped, int(status))
	case cldContinued:
		return terminatedBy(ReasonContinued, int(status))
	default:
		return terminatedBy(ReasonUncategorized, int(status))
	}
}

func defaultWaiter() Waiter {
	return WaitID{}
}

// waitidChild probes with waitid and reaps with exec.Cmd.Wait, once.
type waitidChild struct {
	cmd    *exec.Cmd
	once   sync.Once
	status ExitStatus
	err    error
}

func newChild(cmd *exec.Cmd) child {
	return &waitidChild{cmd: cmd}
}

func (c *waitidChild) probe() (ExitStatus, error) {
	return WaitID{}.Probe(c.cmd.Process.Pid)
}

func (c *waitidChild) reap() (ExitStatus, error) {
	c.once.Do(func() {
		c.status, c.err = waitCmd(c.cmd)
	})
	return c.status, c.err
}
