package process

import "syscall"

var windowsSignals = map[string]Signal{
	"SIGHUP":  SIGHUP,
	"SIGINT":  SIGINT,
	"SIGQUIT": SIGQUIT,
	"SIGKILL": SIGKILL,
	"SIGTERM": SIGTERM,
}

// SignalString returns the description Go gives the signal on Windows.
func SignalString(s Signal) string {
	return syscall.Signal(s).String()
}

func signalByName(name string) (Signal, bool) {
	s, ok := windowsSignals[name]
	return s, ok
}
