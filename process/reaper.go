package process

import (
	"os/exec"
	"sync"
	"syscall"
)

// child is the platform specific handle Process uses to observe and reap
// its command.
type child interface {
	probe() (ExitStatus, error)
	reap() (ExitStatus, error)
}

// Reaper emulates a non-consuming wait where the platform has none. It is
// the single designated reaper for the commands it watches: it performs
// their one destructive wait and keeps the result for any number of
// observers.
type Reaper struct {
	mu      sync.Mutex
	entries map[int]*reaperEntry
}

type reaperEntry struct {
	done   chan struct{}
	status ExitStatus
	err    error
}

func NewReaper() *Reaper {
	return &Reaper{entries: make(map[int]*reaperEntry)}
}

// Watch hands the destructive wait of a started command to the reaper.
// Nothing else may call cmd.Wait afterwards.
func (r *Reaper) Watch(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	e := &reaperEntry{done: make(chan struct{})}

	r.mu.Lock()
	r.entries[pid] = e
	r.mu.Unlock()

	go func() {
		defer close(e.done)
		e.status, e.err = waitCmd(cmd)
	}()
}

// Probe blocks until the watched process has changed state. Pids the
// reaper is not watching (or has already released) are not waitable.
func (r *Reaper) Probe(pid int) (ExitStatus, error) {
	e, ok := r.entry(pid)
	if !ok {
		return ExitStatus{}, newProbeError(pid, syscall.ECHILD)
	}
	return e.result(pid)
}

// Reap waits like Probe and then forgets pid, so later probes report it as
// not waitable, as they would after a real reap.
func (r *Reaper) Reap(pid int) (ExitStatus, error) {
	e, ok := r.entry(pid)
	if !ok {
		return ExitStatus{}, newProbeError(pid, syscall.ECHILD)
	}
	return r.release(pid, e)
}

// release waits for e and drops it. Once e's process has been waited for
// its pid can be reused, and a new child watched under the same pid must
// stay registered.
func (r *Reaper) release(pid int, e *reaperEntry) (ExitStatus, error) {
	status, err := e.result(pid)

	r.mu.Lock()
	if r.entries[pid] == e {
		delete(r.entries, pid)
	}
	r.mu.Unlock()

	return status, err
}

// Watching reports whether pid is currently held by the reaper.
func (r *Reaper) Watching(pid int) bool {
	_, ok := r.entry(pid)
	return ok
}

func (r *Reaper) entry(pid int) (*reaperEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pid]
	return e, ok
}

func (e *reaperEntry) result(pid int) (ExitStatus, error) {
	<-e.done
	if e.err != nil {
		return ExitStatus{}, newProbeError(pid, e.err)
	}
	return e.status, nil
}

// waitCmd performs the destructive wait. A non-zero exit is a status, not
// an error.
func waitCmd(cmd *exec.Cmd) (ExitStatus, error) {
	err := cmd.Wait()
	if cmd.ProcessState == nil {
		return ExitStatus{}, err
	}
	return statusFromProcessState(cmd.ProcessState), nil
}
