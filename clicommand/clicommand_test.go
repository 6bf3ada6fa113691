package clicommand

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buildkite/procctl/cliconfig"
	"github.com/buildkite/procctl/process"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// loadConfig parses args with the flags of cmd and loads them into a T,
// without running the command's action.
func loadConfig[T any](t *testing.T, cmd cli.Command, args ...string) (T, error) {
	t.Helper()

	var (
		cfg     T
		loadErr error
	)

	cmd.Action = func(c *cli.Context) error {
		loader := cliconfig.Loader{CLI: c, Config: &cfg}
		_, loadErr = loader.Load()
		return nil
	}

	app := cli.NewApp()
	app.Name = "procctl"
	app.ErrWriter = &bytes.Buffer{}
	app.Writer = &bytes.Buffer{}
	app.Commands = []cli.Command{cmd}

	require.NoError(t, app.Run(append([]string{"procctl", cmd.Name}, args...)))
	return cfg, loadErr
}

func TestRunConfigDefaults(t *testing.T) {
	cfg, err := loadConfig[RunConfig](t, RunCommand, "--", "sleep", "1")
	require.NoError(t, err)

	want := RunConfig{
		Command:            []string{"sleep", "1"},
		Env:                []string{},
		Format:             "text",
		InterruptSignal:    "SIGTERM",
		SignalGracePeriod:  10 * time.Second,
		LogLevel:           "notice",
		LogFormat:          "text",
		MetricsDatadogHost: "127.0.0.1:8125",
		TracingServiceName: "procctl",
	}
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("RunConfig diff (-want +got):\n%s", diff)
	}
}

func TestRunConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("PROCCTL_MEMORY_LIMIT", "64MiB")

	cfg, err := loadConfig[RunConfig](t, RunCommand,
		"--time-limit", "90s",
		"--terminate",
		"--env", "A=1,B=2",
		"--env", "C=3",
		"--format", "json",
		"--", "make", "test",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"make", "test"}, cfg.Command)
	assert.Equal(t, 90*time.Second, cfg.TimeLimit)
	assert.True(t, cfg.Terminate)
	assert.Equal(t, "64MiB", cfg.MemoryLimit)
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, cfg.Env)
	assert.Equal(t, "json", cfg.Format)
}

func TestRunConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procctl.cfg")
	require.NoError(t, os.WriteFile(path, []byte(`
# limits for every run
time-limit=5m
strict-errors=true
interrupt-signal="SIGINT"
`), 0o600))

	cfg, err := loadConfig[RunConfig](t, RunCommand,
		"--config", path,
		"--interrupt-signal", "SIGHUP",
		"--", "true",
	)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.TimeLimit)
	assert.True(t, cfg.StrictErrors)
	// The command line wins over the file.
	assert.Equal(t, "SIGHUP", cfg.InterruptSignal)
}

func TestRunConfigMissingConfigFile(t *testing.T) {
	_, err := loadConfig[RunConfig](t, RunCommand, "--config", filepath.Join(t.TempDir(), "nope.cfg"), "--", "true")
	assert.ErrorContains(t, err, "could not be found")
}

func TestProbeConfig(t *testing.T) {
	cfg, err := loadConfig[ProbeConfig](t, ProbeCommand, "--format", "json", "4242")
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Pid)
	assert.Equal(t, "json", cfg.Format)
}

func TestProbeConfigPidFromEnv(t *testing.T) {
	t.Setenv("PROCCTL_PID", "77")

	cfg, err := loadConfig[ProbeConfig](t, ProbeCommand)
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Pid)
}

func TestProbeConfigRequiresPid(t *testing.T) {
	_, err := loadConfig[ProbeConfig](t, ProbeCommand)
	assert.ErrorContains(t, err, "Missing pid.")
}

func TestProcessConfig(t *testing.T) {
	t.Parallel()

	conf, err := RunConfig{
		Command:           []string{"sleep", "5"},
		Format:            "text",
		MemoryLimit:       "1 GiB",
		InterruptSignal:   "INT",
		TimeLimit:         time.Second,
		Terminate:         true,
		SignalGracePeriod: time.Second,
	}.processConfig()
	require.NoError(t, err)

	assert.Equal(t, "sleep", conf.Path)
	assert.Equal(t, []string{"5"}, conf.Args)
	assert.Equal(t, uint64(1<<30), conf.MemoryLimit)
	assert.Equal(t, process.SIGINT, conf.InterruptSignal)
	assert.True(t, conf.TerminateOnTimeout)
}

func TestProcessConfigCommandLine(t *testing.T) {
	t.Parallel()

	conf, err := RunConfig{
		CommandLine: `sh -c 'echo "hello world"'`,
		Format:      "text",
	}.processConfig()
	require.NoError(t, err)
	assert.Equal(t, "sh", conf.Path)
	assert.Equal(t, []string{"-c", `echo "hello world"`}, conf.Args)

	// Positional arguments win.
	conf, err = RunConfig{
		Command:     []string{"true"},
		CommandLine: "false",
		Format:      "text",
	}.processConfig()
	require.NoError(t, err)
	assert.Equal(t, "true", conf.Path)
	assert.Empty(t, conf.Args)
}

func TestRunConfigCommandFromEnv(t *testing.T) {
	t.Setenv("PROCCTL_COMMAND", "sleep 2")

	cfg, err := loadConfig[RunConfig](t, RunCommand)
	require.NoError(t, err)
	assert.Equal(t, "sleep 2", cfg.CommandLine)
	assert.Empty(t, cfg.Command)
}

func TestProcessConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RunConfig
		want string
	}{
		{"no command", RunConfig{Format: "text"}, "missing command"},
		{"bad format", RunConfig{Command: []string{"true"}, Format: "yaml"}, `unknown format "yaml"`},
		{"bad memory limit", RunConfig{Command: []string{"true"}, Format: "text", MemoryLimit: "heaps"}, "parsing memory limit"},
		{"bad signal", RunConfig{Command: []string{"true"}, Format: "text", InterruptSignal: "SIGNOPE"}, "parsing interrupt signal"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := test.cfg.processConfig()
			assert.ErrorContains(t, err, test.want)
		})
	}
}

func TestExitErrorForStatus(t *testing.T) {
	t.Parallel()

	assert.NoError(t, exitErrorForStatus(process.ExitStatus{Value: 0, Reason: process.ReasonExited}))

	var exitErr *ExitError
	err := exitErrorForStatus(process.ExitStatus{Value: 3, Reason: process.ReasonExited})
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code())

	err = exitErrorForStatus(process.ExitStatus{Value: 15, Terminated: true, Reason: process.ReasonKilled})
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 143, exitErr.Code())
	assert.Equal(t, "exit status 143", exitErr.Error())
}

func TestExitErrorIs(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := NewExitError(2, inner)

	assert.ErrorIs(t, err, NewExitError(2, inner))
	assert.NotErrorIs(t, err, NewExitError(3, inner))
	assert.ErrorIs(t, err, inner)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	status := process.ExitStatus{Value: 9, Terminated: true, Reason: process.ReasonKilled}

	var text bytes.Buffer
	require.NoError(t, writeReport(&text, formatText, newReport(10, status)))
	assert.Equal(t, "10: signal: 9 ("+process.SignalString(process.SIGKILL)+")\n", text.String())

	var js bytes.Buffer
	r := newReport(10, status)
	r.Stdout = "hi\n"
	require.NoError(t, writeReport(&js, formatJSON, r))
	assert.JSONEq(t, `{
		"pid": 10,
		"status": {"value": 9, "terminated": true},
		"reason": "killed",
		"exit_code": 137,
		"stdout": "hi\n"
	}`, js.String())

	var failed bytes.Buffer
	require.NoError(t, writeReport(&failed, formatText, report{Pid: 3, Error: "not waitable"}))
	assert.Equal(t, "3: not waitable\n", failed.String())
}

func TestDescribeProbeError(t *testing.T) {
	t.Parallel()

	_, err := process.Probe(os.Getppid())
	require.Error(t, err)
	assert.Contains(t, describeProbeError(err), "not waitable")
	assert.Equal(t, "plain", describeProbeError(errors.New("plain")))
}

func TestDefaultConfigFilePaths(t *testing.T) {
	t.Parallel()

	paths := DefaultConfigFilePaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, "procctl.cfg", filepath.Base(paths[0]))
}
