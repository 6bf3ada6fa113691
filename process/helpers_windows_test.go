package process_test

// Windows has no job control, so the helper just exits.
func stopSelf() {}
