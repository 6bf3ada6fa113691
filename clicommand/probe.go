package clicommand

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/buildkite/procctl/logger"
	"github.com/buildkite/procctl/process"
	"github.com/urfave/cli"
)

const probeHelpDescription = `Usage:

    procctl probe [options...] <pid>

Description:

Reports the state of a process without reaping it. The operating system
only lets a process wait on its own children, so probing any other pid
reports it as not waitable.

Example:

    $ procctl probe 4242
    $ PROCCTL_PID=4242 procctl probe --format json`

type ProbeConfig struct {
	Pid    int    `cli:"arg:0" env:"PROCCTL_PID" validate:"required"`
	Format string `cli:"format"`

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

var ProbeCommand = cli.Command{
	Name:        "probe",
	Usage:       "Report the state of a child process without reaping it",
	Description: probeHelpDescription,
	Flags:       append([]cli.Flag{FormatFlag}, globalFlags()...),
	Action: func(c *cli.Context) error {
		_, cfg, l, _, done := setupLoggerAndConfig[ProbeConfig](context.Background(), c)
		defer done()

		return probe(cfg, l)
	},
}

func probe(cfg ProbeConfig, l logger.Logger) error {
	if err := validateFormat(cfg.Format); err != nil {
		return NewExitError(1, err)
	}

	l.Debug("Probing PID: %d", cfg.Pid)
	status, err := process.Probe(cfg.Pid)
	if err != nil {
		r := report{Pid: cfg.Pid, Error: describeProbeError(err)}
		if werr := writeReport(os.Stdout, cfg.Format, r); werr != nil {
			l.Error("Printing the result failed: %v", werr)
		}
		return NewExitError(1, err)
	}

	return writeReport(os.Stdout, cfg.Format, newReport(cfg.Pid, status))
}

func describeProbeError(err error) string {
	var perr *process.ProbeError
	if !errors.As(err, &perr) {
		return err.Error()
	}
	if errno := perr.Errno(); errno != 0 {
		return fmt.Sprintf("%s (%s, errno %d)", perr.Err, perr.Kind, int(errno))
	}
	return fmt.Sprintf("%s (%s)", perr.Err, perr.Kind)
}
