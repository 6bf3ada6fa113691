package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "procctl.cfg")
	require.NoError(t, os.WriteFile(path, []byte(`
# comments and blank lines are skipped

time-limit=30s
memory-limit: 512MiB   # trailing comment
export log-level="debug"
interrupt-signal = 'SIGINT'
metrics-addr=localhost:9090
message="hash # inside quotes"
`), 0o600))

	f := File{Path: path}
	require.True(t, f.Exists())
	require.NoError(t, f.Load())

	want := map[string]string{
		"time-limit":       "30s",
		"memory-limit":     "512MiB",
		"log-level":        "debug",
		"interrupt-signal": "SIGINT",
		"metrics-addr":     "localhost:9090",
		"message":          "hash # inside quotes",
	}
	if diff := cmp.Diff(want, f.Config); diff != "" {
		t.Errorf("File.Config diff (-want +got):\n%s", diff)
	}
}

func TestFileLoadBadLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "procctl.cfg")
	require.NoError(t, os.WriteFile(path, []byte("debug=true\njust-a-word\n"), 0o600))

	f := File{Path: path}
	assert.ErrorContains(t, f.Load(), "parsing config line 2")
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	assert.False(t, File{Path: filepath.Join(t.TempDir(), "missing.cfg")}.Exists())
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line, key, value string
	}{
		{"a=b", "a", "b"},
		{"a: b", "a", "b"},
		{`a="x\"y"`, "a", `x"y`},
		{"a=", "a", ""},
		{"export a=1 # one", "a", "1"},
	}
	for _, test := range tests {
		key, value, err := parseLine(test.line)
		require.NoError(t, err, test.line)
		assert.Equal(t, test.key, key, test.line)
		assert.Equal(t, test.value, value, test.line)
	}

	_, _, err := parseLine("=b")
	assert.ErrorContains(t, err, "empty key")
}
