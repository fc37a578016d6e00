package identity

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/PolarWolf314/agedit/internal/config"
	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// Candidates resolves the configured identity entries to existing private
// key files, preserving configuration order and dropping duplicates.
// Entries that fail to resolve or point at missing files are skipped; a
// later entry may still unlock the secret, so discovery never fails hard.
func Candidates(ctx context.Context, entries []config.IdentityEntry, log logger.Logger) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, entry := range entries {
		path, err := Resolve(ctx, entry)
		if err != nil {
			log.Debugf("skipping identity entry: %v", err)
			continue
		}
		if path == "" {
			continue
		}

		expanded, err := utils.ExpandPath(path)
		if err != nil {
			log.Debugf("skipping identity %s: %v", path, err)
			continue
		}
		if !utils.FileExists(expanded) {
			log.Debugf("identity %s does not exist, skipping", expanded)
			continue
		}
		if seen[expanded] {
			continue
		}
		seen[expanded] = true
		paths = append(paths, expanded)
	}

	return paths
}

// Resolve turns one configured entry into a key path. Command entries run
// through the shell and contribute their first stdout line. The path is
// returned as configured; callers expand and existence-check it.
func Resolve(ctx context.Context, entry config.IdentityEntry) (string, error) {
	switch {
	case entry.Func != nil:
		path, err := entry.Func()
		if err != nil {
			return "", fmt.Errorf("identity function failed: %w", err)
		}
		return path, nil
	case entry.Command != "":
		out, err := exec.CommandContext(ctx, "sh", "-c", entry.Command).Output()
		if err != nil {
			return "", fmt.Errorf("identity command %q failed: %w", entry.Command, err)
		}
		line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
		return strings.TrimSpace(line), nil
	default:
		return entry.Path, nil
	}
}
