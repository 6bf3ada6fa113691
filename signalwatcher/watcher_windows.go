package signalwatcher

import "os"

// Only Ctrl-C can be caught on Windows.
var watched = []os.Signal{os.Interrupt}

func normalize(os.Signal) Signal {
	return INT
}
