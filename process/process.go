// Package process starts child processes and observes them with a
// non-consuming status probe, reaping each one exactly once.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/buildkite/procctl/logger"
	"github.com/buildkite/procctl/metrics"
	"github.com/buildkite/roko"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/buildkite/procctl/process")

// Config describes the command to run and the limits to enforce on it.
type Config struct {
	Path string
	Args []string
	Env  []string
	Dir  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// CaptureOutput collects stdout and stderr into the Output returned by
	// Run. Stdout and Stderr are ignored when it is set.
	CaptureOutput bool
	StdoutFilter  Filter
	StderrFilter  Filter

	// TimeLimit bounds the whole run, counted from Start. Every call to
	// Wait shares the same deadline. Zero waits forever.
	TimeLimit time.Duration

	// MemoryLimit caps the address space of the process in bytes.
	MemoryLimit uint64

	// TerminateOnTimeout kills and reaps the process when TimeLimit is hit.
	TerminateOnTimeout bool

	// StrictErrors surfaces errors from terminating the process or reading
	// its output, which are otherwise only logged.
	StrictErrors bool

	// InterruptSignal is sent by Interrupt. Defaults to SIGTERM.
	InterruptSignal Signal

	// SignalGracePeriod is how long Stop waits after interrupting before
	// it terminates.
	SignalGracePeriod time.Duration

	Metrics *metrics.Scope
}

// Process is a child process supervised through a Waiter.
type Process struct {
	pid    int
	logger logger.Logger
	conf   Config

	command *exec.Cmd
	child   child
	output  *outputCapture

	mu            sync.Mutex
	started, done chan struct{}
	startedAt     time.Time
	deadline      time.Time
	limitReported bool

	finishOnce sync.Once
	status     ExitStatus
	err        error
}

// New returns a new instance of Process
func New(l logger.Logger, c Config) *Process {
	return &Process{
		logger:  l,
		conf:    c,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Pid is the pid of the running process
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// Started returns a channel that is closed when the process is started
func (p *Process) Started() <-chan struct{} {
	return p.started
}

// Done returns a channel that is closed when the process has been reaped
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the final status once the process has been reaped.
func (p *Process) Status() (ExitStatus, bool) {
	select {
	case <-p.done:
		return p.status, p.err == nil
	default:
		return ExitStatus{}, false
	}
}

// Start spawns the command and applies the memory limit. It does not wait.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.command != nil {
		return fmt.Errorf("process is already running")
	}

	cmd := exec.Command(p.conf.Path, p.conf.Args...)
	cmd.Dir = p.conf.Dir
	cmd.Stdin = p.conf.Stdin

	// Merge the configured environment over our own so the child still
	// gets PATH and friends.
	cmd.Env = append(os.Environ(), p.conf.Env...)

	if p.conf.CaptureOutput {
		output, err := newOutputCapture(cmd)
		if err != nil {
			return err
		}
		p.output = output
	} else {
		cmd.Stdout = p.conf.Stdout
		cmd.Stderr = p.conf.Stderr
	}

	if err := cmd.Start(); err != nil {
		if p.output != nil {
			p.output.abort()
		}
		return fmt.Errorf("starting %s: %w", p.conf.Path, err)
	}

	p.command = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	if p.conf.TimeLimit > 0 {
		p.deadline = p.startedAt.Add(p.conf.TimeLimit)
	}
	p.child = newChild(cmd)

	if p.output != nil {
		p.output.start(p.conf.StdoutFilter, p.conf.StderrFilter)
	}

	processesStarted.Inc()
	p.conf.Metrics.Count("process.started", 1)
	p.logger.Info("[Process] Process is running with PID: %d", p.pid)

	if p.conf.MemoryLimit > 0 {
		if err := SetMemoryLimit(p.pid, p.conf.MemoryLimit); err != nil {
			p.logger.Error("[Process] Couldn't apply memory limit to PID: %d (%v), killing it", p.pid, err)
			if kerr := Terminate(p.pid); kerr != nil {
				p.logger.Error("[Process] Failed to kill PID: %d (%v)", p.pid, kerr)
			}
			p.finish()
			close(p.started)
			return err
		}
		p.logger.Debug("[Process] Limited PID: %d to %d bytes of memory", p.pid, p.conf.MemoryLimit)
	}

	close(p.started)
	return nil
}

// Probe reports the current state of the process without reaping it.
func (p *Process) Probe() (ExitStatus, error) {
	select {
	case <-p.done:
		return p.status, p.err
	default:
	}

	c := p.getChild()
	if c == nil {
		return ExitStatus{}, ErrNotStarted
	}
	status, err := c.probe()
	observeProbe(err)
	return status, err
}

type probeResult struct {
	status ExitStatus
	err    error
}

// Wait blocks until the process exits, is killed or is stopped, the time
// limit passes, or ctx is done. The time limit runs from Start, so polling
// Wait on a stopped process still ends at the deadline.
//
// An exited or killed process is reaped and its status kept for Status.
// A stopped process is reported but not reaped. When the time limit passes
// Wait returns ErrTimeLimitExceeded, after killing and reaping the process
// if TerminateOnTimeout is set; otherwise the process keeps running and
// Wait may be called again, now without a time limit.
func (p *Process) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.done:
		return p.status, p.err
	default:
	}

	c := p.getChild()
	if c == nil {
		return ExitStatus{}, ErrNotStarted
	}

	ctx, span := tracer.Start(ctx, "process.wait",
		trace.WithAttributes(attribute.Int("process.pid", p.pid)),
	)
	defer span.End()

	results := make(chan probeResult, 1)
	go func() {
		status, err := p.probe(ctx, c)
		results <- probeResult{status: status, err: err}
	}()

	var timeLimit <-chan time.Time
	if deadline := p.getDeadline(); !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeLimit = timer.C
	}

	select {
	case res := <-results:
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "probe failed")
			return ExitStatus{}, res.err
		}

		span.SetAttributes(
			attribute.String("process.state", res.status.Reason.String()),
			attribute.Int("process.status", res.status.Value),
		)

		if !res.status.final() {
			// A stopped process answers every probe straight away, so
			// the deadline has to be checked here too.
			if p.pastDeadline() {
				return p.timeLimitExceeded(span)
			}
			p.logger.Debug("[Process] Process with PID: %d changed state: %s", p.pid, res.status)
			return res.status, nil
		}

		return p.finish()

	case <-timeLimit:
		return p.timeLimitExceeded(span)

	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

func (p *Process) timeLimitExceeded(span trace.Span) (ExitStatus, error) {
	p.mu.Lock()
	p.limitReported = true
	p.mu.Unlock()

	waitTimeouts.Inc()
	p.conf.Metrics.Count("process.time_limit_exceeded", 1)
	span.SetStatus(codes.Error, ErrTimeLimitExceeded.Error())
	p.logger.Warn("[Process] Process with PID: %d exceeded its time limit of %v", p.pid, p.conf.TimeLimit)

	if !p.conf.TerminateOnTimeout {
		return ExitStatus{}, ErrTimeLimitExceeded
	}

	if err := p.terminateAndReap(); err != nil && p.conf.StrictErrors {
		return ExitStatus{}, err
	}
	return ExitStatus{}, ErrTimeLimitExceeded
}

// getDeadline is zero when there is no time limit, or once exceeding it
// has been reported.
func (p *Process) getDeadline() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limitReported {
		return time.Time{}
	}
	return p.deadline
}

func (p *Process) pastDeadline() bool {
	deadline := p.getDeadline()
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// Run starts the process and waits for it.
func (p *Process) Run(ctx context.Context) (Output, error) {
	if err := p.Start(ctx); err != nil {
		return Output{}, err
	}

	status, err := p.Wait(ctx)
	if err != nil {
		return Output{}, err
	}

	out, _ := p.Output()
	out.Status = status
	return out, nil
}

// Output returns the final status and any captured output once the process
// has been reaped.
func (p *Process) Output() (Output, bool) {
	select {
	case <-p.done:
	default:
		return Output{}, false
	}

	out := Output{Status: p.status}
	if p.output != nil {
		out.Stdout = p.output.stdout.Bytes()
		out.Stderr = p.output.stderr.Bytes()
	}
	return out, p.err == nil
}

// Interrupt sends the configured interrupt signal to the process.
func (p *Process) Interrupt() error {
	sig := p.conf.InterruptSignal
	if sig == 0 {
		sig = SIGTERM
	}
	return p.signal(sig)
}

// Terminate kills the process. It does nothing once the process has been
// reaped, since the pid may already belong to someone else.
func (p *Process) Terminate() error {
	return p.signal(SIGKILL)
}

// Stop interrupts the process and terminates it if it hasn't been reaped
// within the grace period. Something else must be calling Wait for the
// process to be reaped.
func (p *Process) Stop(ctx context.Context) error {
	if err := p.Interrupt(); err != nil {
		return err
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.conf.SignalGracePeriod):
		p.logger.Debug("[Process] Process with PID: %d didn't stop within %v, terminating", p.pid, p.conf.SignalGracePeriod)
		return p.Terminate()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal sends sig to the process. Like Terminate it does nothing once the
// process has been reaped.
func (p *Process) Signal(sig Signal) error {
	return p.signal(sig)
}

func (p *Process) signal(sig Signal) error {
	select {
	case <-p.done:
		p.logger.Debug("[Process] Process with PID: %d already reaped, not sending %s", p.pid, sig)
		return nil
	default:
	}

	if p.getChild() == nil {
		p.logger.Debug("[Process] No process to signal yet")
		return nil
	}

	p.logger.Debug("[Process] Sending signal: %s to PID: %d", sig, p.pid)
	if err := signalPid(p.pid, sig); err != nil {
		p.logger.Error("[Process] Failed to send signal: %s to PID: %d (%v)", sig, p.pid, err)
		return err
	}
	return nil
}

// probe calls the child's probe until it stops being interrupted.
func (p *Process) probe(ctx context.Context, c child) (ExitStatus, error) {
	var status ExitStatus
	err := roko.NewRetrier(
		roko.TryForever(),
		roko.WithStrategy(roko.Constant(time.Millisecond)),
	).DoWithContext(ctx, func(r *roko.Retrier) error {
		s, err := c.probe()
		observeProbe(err)
		if errors.Is(err, ErrInterrupted) {
			p.logger.Debug("[Process] Probe of PID: %d was interrupted, %s", p.pid, r)
			return err
		}
		if err != nil {
			r.Break()
			return err
		}
		status = s
		return nil
	})
	return status, err
}

func (p *Process) terminateAndReap() error {
	termErr := Terminate(p.pid)
	if termErr != nil {
		// The process may have exited on its own at the deadline.
		p.logger.Debug("[Process] Terminating PID: %d failed: %v", p.pid, termErr)
	} else {
		processesTerminated.Inc()
	}

	if _, err := p.finish(); err != nil && termErr == nil {
		return err
	}
	return termErr
}

// finish performs the single destructive wait and collects any output.
func (p *Process) finish() (ExitStatus, error) {
	p.finishOnce.Do(func() {
		status, err := p.child.reap()

		if p.output != nil {
			if oerr := p.output.wait(); oerr != nil {
				p.logger.Warn("[Process] Reading output of PID: %d failed: %v", p.pid, oerr)
				if p.conf.StrictErrors && err == nil {
					err = oerr
				}
			}
		}

		p.status, p.err = status, err

		elapsed := time.Since(p.startedAt)
		runDurations.Observe(elapsed.Seconds())
		processesReaped.WithLabelValues(status.Reason.String()).Inc()
		p.conf.Metrics.Timing("process.duration", elapsed, metrics.Tags{"reason": status.Reason.String()})

		if err != nil {
			p.logger.Error("[Process] Reaping PID: %d failed: %v", p.pid, err)
		} else {
			p.logger.Info("[Process] Process with PID: %d finished with %s", p.pid, status)
		}

		close(p.done)
	})
	return p.status, p.err
}

func (p *Process) getChild() child {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.child
}

// final reports whether the state is one the process cannot leave, so it
// can be reaped without blocking.
func (s ExitStatus) final() bool {
	switch s.Reason {
	case ReasonExited, ReasonKilled, ReasonDumped:
		return true
	}
	return false
}
