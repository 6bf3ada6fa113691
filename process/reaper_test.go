package process

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startExitHelper(t *testing.T, code string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), "TEST_MAIN=exit", "TEST_EXIT_CODE="+code)
	require.NoError(t, cmd.Start())
	return cmd
}

func TestReaperProbeIsRepeatable(t *testing.T) {
	t.Parallel()

	r := NewReaper()
	cmd := startExitHelper(t, "5")
	pid := cmd.Process.Pid
	r.Watch(cmd)
	assert.True(t, r.Watching(pid))

	first, err := r.Probe(pid)
	require.NoError(t, err)
	assert.Equal(t, exited(5), first)

	second, err := r.Probe(pid)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReaperReapForgets(t *testing.T) {
	t.Parallel()

	r := NewReaper()
	cmd := startExitHelper(t, "0")
	pid := cmd.Process.Pid
	r.Watch(cmd)

	status, err := r.Reap(pid)
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.False(t, r.Watching(pid))

	_, err = r.Probe(pid)
	assert.ErrorIs(t, err, ErrNotWaitable)
	assert.ErrorIs(t, err, syscall.ECHILD)
}

func TestReaperUnknownPid(t *testing.T) {
	t.Parallel()

	_, err := NewReaper().Probe(os.Getpid())

	var perr *ProbeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindNotWaitable, perr.Kind)
	assert.Equal(t, os.Getpid(), perr.Pid)
}

func TestReaperImplementsWaiter(t *testing.T) {
	t.Parallel()

	var _ Waiter = NewReaper()
	assert.NotNil(t, DefaultWaiter())
}

func TestReaperReleaseKeepsReusedPid(t *testing.T) {
	t.Parallel()

	const pid = 4242
	r := NewReaper()

	// The first child has been waited for, and its pid handed to a new
	// child before the reap of the first one finished.
	first := &reaperEntry{done: make(chan struct{}), status: exited(1)}
	close(first.done)
	second := &reaperEntry{done: make(chan struct{}), status: exited(2)}
	close(second.done)

	r.mu.Lock()
	r.entries[pid] = second
	r.mu.Unlock()

	status, err := r.release(pid, first)
	require.NoError(t, err)
	assert.Equal(t, exited(1), status)

	require.True(t, r.Watching(pid), "the new child was dropped")
	status, err = r.Reap(pid)
	require.NoError(t, err)
	assert.Equal(t, exited(2), status)
	assert.False(t, r.Watching(pid))
}
