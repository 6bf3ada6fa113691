//go:build !linux || mips || mipsle || mips64 || mips64le

package process

import "os/exec"

func defaultWaiter() Waiter {
	return DefaultReaper
}

// reaperChild hands the only destructive wait to DefaultReaper and probes
// the status it caches.
type reaperChild struct {
	pid int
}

func newChild(cmd *exec.Cmd) child {
	DefaultReaper.Watch(cmd)
	return &reaperChild{pid: cmd.Process.Pid}
}

func (c *reaperChild) probe() (ExitStatus, error) {
	return DefaultReaper.Probe(c.pid)
}

func (c *reaperChild) reap() (ExitStatus, error) {
	return DefaultReaper.Reap(c.pid)
}
