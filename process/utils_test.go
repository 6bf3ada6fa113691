//go:build !windows

package process_test

import (
	"testing"

	"github.com/buildkite/procctl/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminateMissingProcess(t *testing.T) {
	t.Parallel()

	cmd := startHelper(t, "exit")
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	assert.ErrorIs(t, process.Terminate(pid), process.ErrNotFound)
}
