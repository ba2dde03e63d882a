package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists reports whether path exists. Errors other than "not exist" count
// as existing so callers surface them when they open the file.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// IsLocalURI reports whether uri names a local file: a file:// URI, an
// absolute or relative filesystem path, or a ~ path.
func IsLocalURI(uri string) bool {
	if strings.HasPrefix(uri, "file://") {
		return true
	}
	if strings.Contains(uri, "://") || strings.HasPrefix(uri, "models:/") {
		return false
	}
	return strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, ".") || strings.HasPrefix(uri, "~") || filepath.IsAbs(uri)
}

// LocalPath converts a file:// URI or plain path into a cleaned filesystem
// path with ~ expanded.
func LocalPath(uri string) (string, error) {
	p := strings.TrimPrefix(uri, "file://")
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	p, err := ExpandHome(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(p), nil
}
