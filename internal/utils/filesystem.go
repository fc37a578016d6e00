package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/agedit/internal/ui"
)

// ExpandPath expands a leading ~ and any environment variables in path,
// then makes it absolute. A bare ~ and ~/ both resolve against the
// current user's home directory; ~user syntax is not supported.
func ExpandPath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		if path == "~" {
			path = homeDir
		} else {
			path = filepath.Join(homeDir, path[2:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make %s absolute: %w", path, err)
	}
	return absPath, nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// PrivateTempDir creates a 0700 directory for transient sensitive files.
// It prefers XDG_RUNTIME_DIR, which is tmpfs-backed on systemd systems,
// and falls back to the system temp directory.
func PrivateTempDir(pattern string) (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base != "" {
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			base = ""
		}
	}
	dir, err := os.MkdirTemp(base, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create private temp directory: %w", err)
	}
	if err := os.Chmod(dir, 0700); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to restrict temp directory permissions: %w", err)
	}
	return dir, nil
}

// ShredFile overwrites the file's current contents with zeros and removes
// it. Overwrite errors are ignored: removal is the part that must happen,
// and the file may already be gone.
func ShredFile(path string) error {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		if f, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
			zeros := make([]byte, info.Size())
			_, _ = f.Write(zeros)
			_ = f.Sync()
			_ = f.Close()
		}
	}
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// FormatPaths formats a slice of paths into a readable string.
func FormatPaths(paths []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, path := range paths {
		b.WriteString("    - ")
		b.WriteString(ui.Path.Sprint(path))
		b.WriteString("\n")
	}
	return b.String()
}
