package clicommand

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/buildkite/procctl/logger"
)

type profilerMode string

const (
	cpuMode          profilerMode = `cpu`
	memMode          profilerMode = `mem`
	mutexMode        profilerMode = `mutex`
	blockMode        profilerMode = `block`
	traceMode        profilerMode = `trace`
	threadCreateMode profilerMode = `thread`
)

func parseProfilerMode(mode string) (profilerMode, error) {
	switch mode {
	case `cpu`:
		return cpuMode, nil
	case `mem`, `memory`:
		return memMode, nil
	case `mutex`:
		return mutexMode, nil
	case `block`:
		return blockMode, nil
	case `thread`:
		return threadCreateMode, nil
	case `trace`:
		return traceMode, nil
	}
	return "", fmt.Errorf("unknown profile mode %q", mode)
}

// Profile writes a profile of procctl itself into a temp dir until the
// returned func is called.
func Profile(l logger.Logger, mode string) func() {
	m, err := parseProfilerMode(mode)
	if err != nil {
		l.Fatal("%v", err)
	}

	stop, path, err := startProfile(m)
	if err != nil {
		l.Fatal("Profiler mode %s failed: %v", m, err)
	}
	l.Info("Profiling (%s) to %s", m, path)

	return func() {
		if err := stop(); err != nil {
			l.Error("Profiler mode %s failed: %v", m, err)
			return
		}
		l.Info("Finished %s profiling, %s", m, path)
	}
}

func startProfile(mode profilerMode) (stop func() error, path string, err error) {
	dir, err := os.MkdirTemp("", "procctl-profile")
	if err != nil {
		return nil, "", fmt.Errorf("creating profile directory: %w", err)
	}

	path = filepath.Join(dir, string(mode)+".pprof")
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("creating %s profile %q: %w", mode, path, err)
	}

	lookup := func(name string) func() error {
		return func() error {
			p := pprof.Lookup(name)
			if p == nil {
				return nil
			}
			return p.WriteTo(f, 0)
		}
	}

	var write func() error
	switch mode {
	case cpuMode:
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, "", err
		}
		write = func() error {
			pprof.StopCPUProfile()
			return nil
		}

	case memMode:
		write = func() error { return pprof.WriteHeapProfile(f) }

	case mutexMode:
		runtime.SetMutexProfileFraction(1)
		w := lookup("mutex")
		write = func() error {
			defer runtime.SetMutexProfileFraction(0)
			return w()
		}

	case blockMode:
		runtime.SetBlockProfileRate(1)
		w := lookup("block")
		write = func() error {
			defer runtime.SetBlockProfileRate(0)
			return w()
		}

	case threadCreateMode:
		write = lookup("threadcreate")

	case traceMode:
		if err := trace.Start(f); err != nil {
			f.Close()
			return nil, "", err
		}
		write = func() error {
			trace.Stop()
			return nil
		}
	}

	return func() error {
		werr := write()
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		return werr
	}, path, nil
}
