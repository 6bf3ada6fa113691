// Package osutil holds small filesystem helpers shared by the CLI.
package osutil

import (
	"os"
	"path/filepath"
	"strings"
)

// UserHomeDir prefers $HOME over the platform lookup (USERPROFILE on
// Windows), so config paths written with $HOME behave the same everywhere.
func UserHomeDir() (string, error) {
	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}
	return os.UserHomeDir()
}

// NormalizeFilePath expands a leading ~ and any environment variables,
// then makes the path absolute. Empty paths stay empty.
func NormalizeFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}

// FileExists reports whether os.Stat succeeds for filename. Any error,
// not just a missing file, counts as not existing.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}
