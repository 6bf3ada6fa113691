// Package signalwatcher relays the termination signals procctl receives so
// they can be forwarded to the child it supervises.
package signalwatcher

import (
	"os"
	"os/signal"
	"sync"
)

type Signal string

func (s Signal) String() string {
	return string(s)
}

const (
	HUP  = Signal("HUP")
	INT  = Signal("INT")
	QUIT = Signal("QUIT")
	TERM = Signal("TERM")
)

// Watch calls callback, on its own goroutine, for each watched signal until
// the returned stop function is called.
func Watch(callback func(Signal)) (stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, watched...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-signals:
				go callback(normalize(sig))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(signals)
			close(done)
		})
	}
}
