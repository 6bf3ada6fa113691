package clicommand

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/buildkite/procctl/process"
	"github.com/urfave/cli"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var FormatFlag = cli.StringFlag{
	Name:   "format",
	Value:  formatText,
	Usage:  "How to print the result, either \"text\" or \"json\"",
	EnvVar: "PROCCTL_FORMAT",
}

// report is what run and probe print about a process.
type report struct {
	RunID    string             `json:"run_id,omitempty"`
	Pid      int                `json:"pid"`
	Status   process.ExitStatus `json:"status"`
	Reason   string             `json:"reason"`
	ExitCode int                `json:"exit_code"`
	Duration string             `json:"duration,omitempty"`
	Stdout   string             `json:"stdout,omitempty"`
	Stderr   string             `json:"stderr,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func newReport(pid int, status process.ExitStatus) report {
	return report{
		Pid:      pid,
		Status:   status,
		Reason:   status.Reason.String(),
		ExitCode: status.ExitCode(),
	}
}

func (r report) withDuration(d time.Duration) report {
	r.Duration = d.Round(time.Millisecond).String()
	return r
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q, try text or json", format)
}

// writeReport prints r. The text format is a single status line; captured
// output only appears in the JSON format.
func writeReport(w io.Writer, format string, r report) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if r.Error != "" {
		_, err := fmt.Fprintf(w, "%d: %s\n", r.Pid, r.Error)
		return err
	}
	_, err := fmt.Fprintf(w, "%d: %s\n", r.Pid, r.Status)
	return err
}
