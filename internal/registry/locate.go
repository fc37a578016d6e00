package registry

import (
	"fmt"
	"path/filepath"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// Location identifies the rules file governing a secret.
type Location struct {
	// Dir is the directory holding the rules file. Rule keys are secret
	// paths relative to it.
	Dir string

	// File is the absolute path of the rules file itself.
	File string
}

// Locate finds the rules file governing secretPath by walking from the
// secret's directory toward the filesystem root. The nearest rules file
// wins, so nested projects shadow their parents. Returns ErrNoRulesFile
// when the walk reaches the root without a hit.
func Locate(secretPath, rulesName string) (Location, error) {
	abs, err := filepath.Abs(secretPath)
	if err != nil {
		return Location{}, fmt.Errorf("failed to resolve %s: %w", secretPath, err)
	}
	return LocateFrom(filepath.Dir(abs), rulesName)
}

// LocateFrom finds the rules file governing secrets in startDir, walking
// upward the same way Locate does. Used by the commands that enumerate
// secrets instead of starting from one.
func LocateFrom(startDir, rulesName string) (Location, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return Location{}, fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, rulesName)
		if utils.FileExists(candidate) {
			return Location{Dir: dir, File: candidate}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Location{}, fmt.Errorf("%w: no %s in any directory above %s",
				aerrors.ErrNoRulesFile, rulesName, abs)
		}
		dir = parent
	}
}

// RuleKey returns the attribute name under which the rules file declares
// secretPath: the secret's path relative to the rules directory, with
// forward slashes on every platform.
func RuleKey(loc Location, secretPath string) (string, error) {
	abs, err := filepath.Abs(secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", secretPath, err)
	}
	rel, err := filepath.Rel(loc.Dir, abs)
	if err != nil {
		return "", fmt.Errorf("secret %s is not addressable from rules directory %s: %w", abs, loc.Dir, err)
	}
	return filepath.ToSlash(rel), nil
}
