package workflows

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/PolarWolf314/agedit/internal/config"
	"github.com/PolarWolf314/agedit/internal/registry"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// FileStatus represents the state of one declared or discovered secret.
type FileStatus string

const (
	// StatusOK means the secret is declared and present on disk.
	StatusOK FileStatus = "ok"
	// StatusMissing means the secret is declared but has no file yet.
	StatusMissing FileStatus = "missing"
	// StatusUndeclared means a .age file exists with no rule governing it.
	StatusUndeclared FileStatus = "undeclared"
	// StatusBadRule means the secret is declared but its recipients
	// cannot be resolved.
	StatusBadRule FileStatus = "bad-rule"
)

// SecretStatusInfo holds the status of a single secret.
type SecretStatusInfo struct {
	// Path is the secret's path relative to the rules directory, with
	// forward slashes. This matches the rule key for declared secrets.
	Path string `json:"path"`

	// Status is the secret's state.
	Status FileStatus `json:"status"`

	// Recipients is the number of keys the rules file declares for the
	// secret. Zero for undeclared secrets and broken rules.
	Recipients int `json:"recipients,omitempty"`

	// Detail explains a bad-rule status. Empty otherwise.
	Detail string `json:"detail,omitempty"`

	// Mtime is the modification time of the encrypted file, empty when
	// the file does not exist.
	Mtime string `json:"mtime,omitempty"`
}

// StatusSummary holds counts of secrets by status.
type StatusSummary struct {
	OK         int `json:"ok"`
	Missing    int `json:"missing"`
	Undeclared int `json:"undeclared"`
	BadRules   int `json:"bad_rules"`
}

// StatusOptions configures the status workflow.
type StatusOptions struct {
	// Dir is the directory the rules file is located from. Defaults to
	// the current working directory.
	Dir string
}

// StatusResult contains the outcome of a status operation.
type StatusResult struct {
	// RulesFile is the rules file the report covers.
	RulesFile string `json:"rules_file"`

	// Files contains the status of each secret, sorted by path.
	Files []SecretStatusInfo `json:"files"`

	// Summary contains counts of secrets by status.
	Summary StatusSummary `json:"summary"`
}

// Status reports on every secret a rules file governs. Declared secrets
// are checked for presence and resolvable recipients; the rules directory
// is also scanned for .age files no rule declares, since those can never
// be rekeyed and were probably forgotten during a rules cleanup.
//
// Subtrees governed by a nested rules file belong to that file and are
// left out of the report.
func Status(ctx context.Context, cfg *config.Config, opts StatusOptions) (*StatusResult, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}

	loc, err := registry.LocateFrom(dir, cfg.RulesName)
	if err != nil {
		return nil, err
	}

	names, err := registry.Names(ctx, cfg, loc.File)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(names))
	var files []SecretStatusInfo
	for _, name := range names {
		declared[name] = true
		files = append(files, declaredStatus(ctx, cfg, loc, name))
	}

	strays, err := discoverSecrets(loc, cfg.RulesName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", loc.Dir, err)
	}
	for _, stray := range strays {
		if declared[stray.Path] {
			continue
		}
		files = append(files, stray)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return &StatusResult{
		RulesFile: loc.File,
		Files:     files,
		Summary:   calculateStatusSummary(files),
	}, nil
}

// declaredStatus determines the status of one declared secret.
func declaredStatus(ctx context.Context, cfg *config.Config, loc registry.Location, name string) SecretStatusInfo {
	path := filepath.Join(loc.Dir, filepath.FromSlash(name))
	info := SecretStatusInfo{Path: name}

	if fileInfo, err := os.Stat(path); err == nil {
		info.Mtime = fileInfo.ModTime().Format("2006-01-02T15:04:05Z07:00")
	}

	recipients, err := registry.RecipientsFor(ctx, cfg, path)
	if err != nil {
		info.Status = StatusBadRule
		info.Detail = err.Error()
		return info
	}
	info.Recipients = len(recipients)

	if info.Mtime == "" {
		info.Status = StatusMissing
		return info
	}
	info.Status = StatusOK
	return info
}

// discoverSecrets walks the rules directory for .age files. Directories
// carrying their own rules file are skipped whole, matching the
// nearest-wins rule used when locating a secret's rules file.
func discoverSecrets(loc registry.Location, rulesName string) ([]SecretStatusInfo, error) {
	var found []SecretStatusInfo
	err := filepath.WalkDir(loc.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == loc.Dir {
				return nil
			}
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			if utils.FileExists(filepath.Join(path, rulesName)) {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".age" {
			return nil
		}

		rel, err := filepath.Rel(loc.Dir, path)
		if err != nil {
			return err
		}
		info := SecretStatusInfo{
			Path:   filepath.ToSlash(rel),
			Status: StatusUndeclared,
		}
		if fileInfo, err := d.Info(); err == nil {
			info.Mtime = fileInfo.ModTime().Format("2006-01-02T15:04:05Z07:00")
		}
		found = append(found, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// calculateStatusSummary calculates the counts of secrets by status.
func calculateStatusSummary(files []SecretStatusInfo) StatusSummary {
	var summary StatusSummary
	for _, file := range files {
		switch file.Status {
		case StatusOK:
			summary.OK++
		case StatusMissing:
			summary.Missing++
		case StatusUndeclared:
			summary.Undeclared++
		case StatusBadRule:
			summary.BadRules++
		}
	}
	return summary
}
