package process

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// Signal is a portable signal number.
type Signal int

const (
	SIGHUP  = Signal(syscall.SIGHUP)
	SIGINT  = Signal(syscall.SIGINT)
	SIGQUIT = Signal(syscall.SIGQUIT)
	SIGKILL = Signal(syscall.SIGKILL)
	SIGTERM = Signal(syscall.SIGTERM)
)

func (s Signal) String() string {
	return SignalString(s)
}

// ParseSignal accepts a signal name with or without the SIG prefix, in any
// case, or a signal number.
func ParseSignal(sig string) (Signal, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return 0, fmt.Errorf("empty signal")
	}

	if n, err := strconv.Atoi(sig); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid signal number %d", n)
		}
		return Signal(n), nil
	}

	name := strings.ToUpper(sig)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}

	if s, ok := signalByName(name); ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown signal %q", sig)
}
