package process

// Waiter reports the state of a process without reaping it.
//
// Probe blocks until the process has exited, been killed or been stopped,
// and returns at once if that has already happened. The state stays
// observable afterwards, so a later reap (or another Probe) sees the same
// status. Errors are *ProbeError values and are never retried.
type Waiter interface {
	Probe(pid int) (ExitStatus, error)
}

// DefaultReaper is the reaper used for children started by this package on
// platforms without a non-consuming wait.
var DefaultReaper = NewReaper()

// DefaultWaiter returns the platform's best non-consuming waiter: the
// native waitid based one where it exists, DefaultReaper otherwise.
func DefaultWaiter() Waiter {
	return defaultWaiter()
}

// Probe reports the state of pid using DefaultWaiter.
func Probe(pid int) (ExitStatus, error) {
	s, err := DefaultWaiter().Probe(pid)
	observeProbe(err)
	return s, err
}
