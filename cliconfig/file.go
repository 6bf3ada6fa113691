package cliconfig

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/buildkite/procctl/internal/osutil"
)

// File is a config file of key=value (or key: value) lines, where keys are
// the same as the long CLI flag names.
type File struct {
	Path string

	// Config holds the values read by Load.
	Config map[string]string
}

func (f *File) Load() error {
	f.Config = map[string]string{}

	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return fmt.Errorf("getting absolute path for %s: %w", f.Path, err)
	}

	file, err := os.Open(absolutePath)
	if err != nil {
		return fmt.Errorf("opening file %s: %w", f.Path, err)
	}
	defer file.Close() //nolint:errcheck // it's only open for reading

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("parsing config line %d: %w", lineNum, err)
		}
		f.Config[key] = value
	}
	return scanner.Err()
}

func (f File) AbsolutePath() (string, error) {
	return osutil.NormalizeFilePath(f.Path)
}

func (f File) Exists() bool {
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return false
	}
	return osutil.FileExists(absolutePath)
}

// parseLine splits a line on the first = (or :), drops a trailing comment
// outside quotes and unquotes the value.
func parseLine(line string) (key, value string, err error) {
	sep := strings.IndexAny(line, "=:")
	if sep < 0 {
		return "", "", fmt.Errorf("can't separate key from value in %q, no = or : found", line)
	}

	key = strings.TrimSpace(strings.TrimPrefix(line[:sep], "export "))
	if key == "" {
		return "", "", fmt.Errorf("empty key in %q", line)
	}

	value = strings.TrimSpace(stripComment(line[sep+1:]))
	if len(value) >= 2 {
		if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
			value = value[1 : len(value)-1]
			value = strings.ReplaceAll(value, `\"`, `"`)
			value = strings.ReplaceAll(value, `\n`, "\n")
		}
	}
	return key, value, nil
}

func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return s[:i]
		}
	}
	return s
}
