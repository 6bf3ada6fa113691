//go:build !windows

package signalwatcher

import (
	"os"
	"syscall"
)

var watched = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
}

func normalize(sig os.Signal) Signal {
	switch sig {
	case syscall.SIGHUP:
		return HUP
	case syscall.SIGINT:
		return INT
	case syscall.SIGTERM:
		return TERM
	default:
		return QUIT
	}
}
