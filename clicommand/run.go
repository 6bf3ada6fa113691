package clicommand

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buildkite/procctl/health"
	"github.com/buildkite/procctl/logger"
	"github.com/buildkite/procctl/metrics"
	"github.com/buildkite/procctl/process"
	"github.com/buildkite/procctl/signalwatcher"
	"github.com/buildkite/shellwords"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/urfave/cli"
)

const runHelpDescription = `Usage:

    procctl run [options...] -- <command> [args...]
    procctl run [options...] --command "<command> [args...]"

Description:

Runs a command as a child of procctl and waits for it, mirroring its exit
status as procctl's own: the exit code when it exits, 128 plus the signal
number when it is killed, and 124 when it outlives --time-limit.

The command can also be given as a single shell-quoted string with
--command (or PROCCTL_COMMAND, or "command" in a config file). Positional
arguments win when both are given.

SIGHUP, SIGINT and SIGTERM sent to procctl are passed on to the command.

Example:

    $ procctl run --time-limit 30s --memory-limit 512MiB -- ./build.sh
    $ procctl run --capture-output --format json -- ls -la`

const stoppedPollInterval = 250 * time.Millisecond

type RunConfig struct {
	Command []string `cli:"arg:*"`

	CommandLine       string        `cli:"command"`
	Dir               string        `cli:"dir" normalize:"filepath"`
	Env               []string      `cli:"env" normalize:"list"`
	TimeLimit         time.Duration `cli:"time-limit"`
	MemoryLimit       string        `cli:"memory-limit"`
	Terminate         bool          `cli:"terminate"`
	StrictErrors      bool          `cli:"strict-errors"`
	CaptureOutput     bool          `cli:"capture-output"`
	Format            string        `cli:"format"`
	InterruptSignal   string        `cli:"interrupt-signal"`
	SignalGracePeriod time.Duration `cli:"signal-grace-period"`

	// Global flags
	Config             string `cli:"config"`
	Debug              bool   `cli:"debug"`
	LogLevel           string `cli:"log-level"`
	LogFormat          string `cli:"log-format"`
	NoColor            bool   `cli:"no-color"`
	Profile            string `cli:"profile"`
	MetricsAddr        string `cli:"metrics-addr"`
	MetricsDatadog     bool   `cli:"metrics-datadog"`
	MetricsDatadogHost string `cli:"metrics-datadog-host"`
	TracingBackend     string `cli:"tracing-backend"`
	TracingServiceName string `cli:"tracing-service-name"`
}

var RunCommand = cli.Command{
	Name:        "run",
	Usage:       "Run a command under supervision and wait for it",
	Description: runHelpDescription,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:   "command",
			Usage:  "The command to run as a single shell-quoted string, used when no positional arguments are given",
			EnvVar: "PROCCTL_COMMAND",
		},
		cli.StringFlag{
			Name:   "dir",
			Usage:  "Directory to run the command in",
			EnvVar: "PROCCTL_DIR",
		},
		cli.StringSliceFlag{
			Name:   "env",
			Value:  &cli.StringSlice{},
			Usage:  "Extra environment variables for the command, as KEY=VALUE",
			EnvVar: "PROCCTL_ENV",
		},
		cli.DurationFlag{
			Name:   "time-limit",
			Usage:  "How long to wait for the command before giving up, e.g. ′90s′. 0 waits forever",
			EnvVar: "PROCCTL_TIME_LIMIT",
		},
		cli.StringFlag{
			Name:   "memory-limit",
			Usage:  "Cap the command's address space, e.g. ′512MiB′ (Linux only)",
			EnvVar: "PROCCTL_MEMORY_LIMIT",
		},
		cli.BoolFlag{
			Name:   "terminate",
			Usage:  "Kill the command when it exceeds --time-limit instead of leaving it running",
			EnvVar: "PROCCTL_TERMINATE",
		},
		cli.BoolFlag{
			Name:   "strict-errors",
			Usage:  "Fail when killing the command or reading its output fails, rather than only logging it",
			EnvVar: "PROCCTL_STRICT_ERRORS",
		},
		cli.BoolFlag{
			Name:   "capture-output",
			Usage:  "Collect the command's stdout and stderr and print them once it finishes",
			EnvVar: "PROCCTL_CAPTURE_OUTPUT",
		},
		FormatFlag,
		cli.StringFlag{
			Name:   "interrupt-signal",
			Value:  "SIGTERM",
			Usage:  "The signal sent to the command when procctl is asked to stop it",
			EnvVar: "PROCCTL_INTERRUPT_SIGNAL",
		},
		cli.DurationFlag{
			Name:   "signal-grace-period",
			Value:  10 * time.Second,
			Usage:  "How long to wait after the interrupt signal before killing the command",
			EnvVar: "PROCCTL_SIGNAL_GRACE_PERIOD",
		},
	}, globalFlags()...),
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ctx, cfg, l, collector, done := setupLoggerAndConfig[RunConfig](ctx, c)
		defer done()

		return runCommand(ctx, cfg, l, collector)
	},
}

// processConfig turns the command line into a process.Config.
func (cfg RunConfig) processConfig() (process.Config, error) {
	command := cfg.Command
	if len(command) == 0 && cfg.CommandLine != "" {
		words, err := shellwords.Split(cfg.CommandLine)
		if err != nil {
			return process.Config{}, fmt.Errorf("parsing command %q: %w", cfg.CommandLine, err)
		}
		command = words
	}
	if len(command) == 0 {
		return process.Config{}, errors.New("missing command to run. See: `procctl run --help`")
	}
	if err := validateFormat(cfg.Format); err != nil {
		return process.Config{}, err
	}

	conf := process.Config{
		Path:               command[0],
		Args:               command[1:],
		Env:                cfg.Env,
		Dir:                cfg.Dir,
		Stdin:              os.Stdin,
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		CaptureOutput:      cfg.CaptureOutput,
		TimeLimit:          cfg.TimeLimit,
		TerminateOnTimeout: cfg.Terminate,
		StrictErrors:       cfg.StrictErrors,
		SignalGracePeriod:  cfg.SignalGracePeriod,
	}

	if cfg.MemoryLimit != "" {
		limit, err := humanize.ParseBytes(cfg.MemoryLimit)
		if err != nil {
			return process.Config{}, fmt.Errorf("parsing memory limit %q: %w", cfg.MemoryLimit, err)
		}
		conf.MemoryLimit = limit
	}

	if cfg.InterruptSignal != "" {
		sig, err := process.ParseSignal(cfg.InterruptSignal)
		if err != nil {
			return process.Config{}, fmt.Errorf("parsing interrupt signal: %w", err)
		}
		conf.InterruptSignal = sig
	}

	return conf, nil
}

func runCommand(ctx context.Context, cfg RunConfig, l logger.Logger, collector *metrics.Collector) error {
	conf, err := cfg.processConfig()
	if err != nil {
		return NewExitError(1, err)
	}
	conf.Metrics = collector.Scope(metrics.Tags{"command": filepath.Base(conf.Path)})

	runID := uuid.NewString()
	l = l.WithFields(logger.StringField("run", runID))

	var status *health.Server
	if cfg.MetricsAddr != "" {
		status = health.NewServer(l)
		go func(l logger.Logger) {
			if err := status.ListenAndServe(ctx, cfg.MetricsAddr); err != nil {
				l.WithFields(logger.ErrorField(err)).Error("Status server failed")
			}
		}(l)
	}

	if conf.MemoryLimit > 0 {
		l.Info("Limiting the address space of %s to %s", conf.Path, humanize.IBytes(conf.MemoryLimit))
	}

	p := process.New(l, conf)
	if err := p.Start(ctx); err != nil {
		return NewExitError(1, err)
	}
	if status != nil {
		status.ProcessStarted(p.Pid(), time.Now())
	}
	l = l.WithFields(logger.IntField("pid", p.Pid()))

	stopWatching := signalwatcher.Watch(func(sig signalwatcher.Signal) {
		forwardSignal(ctx, l, p, sig)
	})
	defer stopWatching()

	startedAt := time.Now()
	var last process.ExitStatus
	for {
		st, err := p.Wait(ctx)
		switch {
		case errors.Is(err, process.ErrTimeLimitExceeded):
			if !cfg.Terminate {
				l.Warn("Leaving PID: %d running past its time limit", p.Pid())
			}
			r := newReport(p.Pid(), st).withDuration(time.Since(startedAt))
			r.RunID = runID
			r.Error = err.Error()
			if cfg.Format == formatJSON {
				_ = writeReport(os.Stdout, cfg.Format, r)
			}
			return NewExitError(ExitCodeTimeLimit, err)

		case err != nil:
			return NewExitError(1, err)
		}

		if status != nil {
			status.ProcessChanged(p.Pid(), st, time.Now())
		}

		if _, finished := p.Status(); !finished {
			// Stopped. The state stays visible to probes until the process
			// moves on, so poll rather than spin.
			if st != last {
				l.WithFields(logger.StringerField("status", st)).Notice("PID: %d changed state", p.Pid())
				last = st
			}
			select {
			case <-time.After(stoppedPollInterval):
			case <-ctx.Done():
				return NewExitError(1, ctx.Err())
			}
			continue
		}

		out, _ := p.Output()
		if cfg.CaptureOutput {
			l.Debug("Captured %s of stdout and %s of stderr",
				humanize.IBytes(uint64(len(out.Stdout))), humanize.IBytes(uint64(len(out.Stderr))))
		}
		if err := printResult(cfg, runID, p.Pid(), out, time.Since(startedAt)); err != nil {
			l.Error("Printing the result failed: %v", err)
		}
		return exitErrorForStatus(st)
	}
}

func printResult(cfg RunConfig, runID string, pid int, out process.Output, elapsed time.Duration) error {
	if cfg.Format == formatJSON {
		r := newReport(pid, out.Status).withDuration(elapsed)
		r.RunID = runID
		r.Stdout = string(out.Stdout)
		r.Stderr = string(out.Stderr)
		return writeReport(os.Stdout, cfg.Format, r)
	}

	if _, err := os.Stdout.Write(out.Stdout); err != nil {
		return err
	}
	_, err := os.Stderr.Write(out.Stderr)
	return err
}

// forwardSignal passes a signal procctl received on to the child. QUIT asks
// for a graceful stop: the interrupt signal, then a kill after the grace
// period.
func forwardSignal(ctx context.Context, l logger.Logger, p *process.Process, sig signalwatcher.Signal) {
	l.Notice("Received %s, passing it on to PID: %d", sig, p.Pid())

	if sig == signalwatcher.QUIT {
		if err := p.Stop(ctx); err != nil {
			l.Error("Stopping PID: %d failed: %v", p.Pid(), err)
		}
		return
	}

	s, err := process.ParseSignal(sig.String())
	if err != nil {
		l.Error("Can't forward %s: %v", sig, err)
		return
	}
	if err := p.Signal(s); err != nil {
		l.Error("Forwarding %s to PID: %d failed: %v", sig, p.Pid(), err)
	}
}
