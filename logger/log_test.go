package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/buildkite/procctl/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLogger(t *testing.T) {
	b := &bytes.Buffer{}
	exitCode := 0

	printer := logger.NewTextPrinter(b)
	printer.Colors = false

	l := logger.NewConsoleLogger(printer, func(c int) {
		exitCode = c
	})
	l.SetLevel(logger.INFO)

	l.Debug("Debug %q", "llamas")
	l.Info("Info %q", "llamas")
	l.Warn("Warn %q", "llamas")
	l.Error("Error %q", "llamas")
	l.Fatal("Fatal %q", "llamas")

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("bad number of lines, got %d", len(lines))
	}

	if !strings.HasSuffix(lines[0], `Info "llamas"`) {
		t.Fatalf("line 0 bad, got %q", lines[0])
	}

	if !strings.HasSuffix(lines[1], `Warn "llamas"`) {
		t.Fatalf("line 1 bad, got %q", lines[1])
	}

	if !strings.HasSuffix(lines[2], `Error "llamas"`) {
		t.Fatalf("line 2 bad, got %q", lines[2])
	}

	if !strings.HasSuffix(lines[3], `Fatal "llamas"`) {
		t.Fatalf("line 3 bad, got %q", lines[3])
	}

	if exitCode != 1 {
		t.Fatalf("exit code bad, got %d", exitCode)
	}
}

func TestConsoleLoggerWithFields(t *testing.T) {
	b := &bytes.Buffer{}
	printer := logger.NewTextPrinter(b)
	printer.Colors = false

	l := logger.NewConsoleLogger(printer, nil)
	l.SetLevel(logger.DEBUG)
	l.WithFields(logger.IntField("pid", 7), logger.ErrorField(errors.New("boom"))).Debug("probed")

	assert.True(t, strings.HasSuffix(b.String(), "probed pid=7 error=boom\n"), "got %q", b.String())
}

func TestStringerField(t *testing.T) {
	f := logger.StringerField("elapsed", 1500*time.Millisecond)
	assert.Equal(t, "elapsed", f.Key())
	assert.Equal(t, "1.5s", f.String())
}

func TestTextPrinter(t *testing.T) {
	b := &bytes.Buffer{}

	printer := logger.NewTextPrinter(b)
	printer.Colors = false

	printer.Print(logger.INFO, "llamas rock", logger.Fields{logger.StringField("key", "val")})

	if msg := b.String(); !strings.HasSuffix(msg, "llamas rock key=val\n") {
		t.Fatalf("bad message, got %q", msg)
	}
}

func TestJSONPrinter(t *testing.T) {
	b := &bytes.Buffer{}

	printer := logger.NewJSONPrinter(b)
	printer.Print(logger.INFO, "llamas rock", logger.Fields{logger.StringField("key", "val")})

	var results map[string]any
	require.NoError(t, json.Unmarshal(b.Bytes(), &results))

	assert.Equal(t, "val", results["key"])
	assert.Equal(t, "llamas rock", results["msg"])
	assert.Equal(t, "INFO", results["level"])
	assert.NotEmpty(t, results["ts"])
}

func TestLevelFromString(t *testing.T) {
	for _, row := range []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"Notice", logger.NOTICE},
		{"warning", logger.WARN},
		{"error", logger.ERROR},
		{"fatal", logger.FATAL},
	} {
		got, err := logger.LevelFromString(row.in)
		require.NoError(t, err, row.in)
		assert.Equal(t, row.want, got, row.in)
	}

	_, err := logger.LevelFromString("llamas")
	assert.Error(t, err)
}
