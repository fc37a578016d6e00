package workflows

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/PolarWolf314/agedit/internal/config"
	"github.com/PolarWolf314/agedit/internal/identity"
	"github.com/PolarWolf314/agedit/internal/registry"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// CheckStatus represents the result status of a health check.
type CheckStatus int

const (
	// CheckPass means the check passed.
	CheckPass CheckStatus = iota
	// CheckWarning means the check found a non-critical issue.
	CheckWarning
	// CheckError means the check found a critical issue.
	CheckError
)

// String returns a string representation of CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarning:
		return "warning"
	case CheckError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for CheckStatus.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult holds the result of a single health check.
type CheckResult struct {
	Name       string      `json:"name"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// DoctorResult holds the complete result of the doctor workflow.
type DoctorResult struct {
	Checks      []CheckResult `json:"checks"`
	Summary     DoctorSummary `json:"summary"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// DoctorSummary holds counts of checks by status.
type DoctorSummary struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// ExitCode maps the summary onto a process exit status: 0 when healthy,
// 1 when only warnings were found, 2 when any check failed.
func (r *DoctorResult) ExitCode() int {
	switch {
	case r.Summary.Errors > 0:
		return 2
	case r.Summary.Warnings > 0:
		return 1
	default:
		return 0
	}
}

// DoctorOptions configures the doctor workflow.
type DoctorOptions struct {
	// Dir is the directory the rules file is located from. Defaults to
	// the current working directory.
	Dir string
}

// Doctor runs health checks on the environment agedit depends on.
//
// The doctor workflow checks:
//   - Config file syntax (a missing file is fine, defaults apply)
//   - Encryption tool and key tool availability
//   - Nix evaluator availability
//   - Rules file reachable from the working directory
//   - State directory writability
//   - Each configured identity: existence, permissions, key format
func Doctor(ctx context.Context, cfg *config.Config, opts DoctorOptions) (*DoctorResult, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}

	checks := []func() CheckResult{
		checkConfigFile,
		func() CheckResult {
			return checkProgram("Encryption tool", cfg.AgeProgram,
				"install age or point age_program at the binary")
		},
		func() CheckResult {
			return checkProgram("Key tool", cfg.KeytoolProgram,
				"install OpenSSH or point keytool_program at the binary")
		},
		func() CheckResult { return checkEvaluator(cfg.NixProgram) },
		func() CheckResult { return checkRulesFile(dir, cfg.RulesName) },
		checkStateDir,
	}

	var results []CheckResult
	for _, check := range checks {
		results = append(results, check())
	}
	results = append(results, checkIdentities(ctx, cfg)...)

	// Calculate summary.
	summary := calculateDoctorSummary(results)

	// Collect suggestions (deduplicated).
	var suggestions []string
	seen := make(map[string]bool)
	for _, result := range results {
		if result.Suggestion != "" && result.Status != CheckPass && !seen[result.Suggestion] {
			suggestions = append(suggestions, result.Suggestion)
			seen[result.Suggestion] = true
		}
	}

	return &DoctorResult{
		Checks:      results,
		Summary:     summary,
		Suggestions: suggestions,
	}, nil
}

// checkConfigFile checks whether the config file, if present, parses.
func checkConfigFile() CheckResult {
	path, err := config.Path()
	if err != nil {
		return CheckResult{
			Name:    "Configuration",
			Status:  CheckWarning,
			Message: fmt.Sprintf("cannot determine config path: %v", err),
		}
	}

	if !utils.FileExists(path) {
		return CheckResult{
			Name:    "Configuration",
			Status:  CheckPass,
			Message: "no config file, using built-in defaults",
		}
	}

	if _, err := config.LoadFrom(path); err != nil {
		return CheckResult{
			Name:       "Configuration",
			Status:     CheckError,
			Message:    fmt.Sprintf("failed to parse %s: %v", path, err),
			Suggestion: fmt.Sprintf("fix the TOML syntax in %s", path),
		}
	}

	return CheckResult{
		Name:    "Configuration",
		Status:  CheckPass,
		Message: fmt.Sprintf("loaded %s", path),
	}
}

// checkProgram checks that an external tool resolves to an accessible
// binary.
func checkProgram(name, program, suggestion string) CheckResult {
	path, err := utils.LookProgram(program)
	if err != nil {
		return CheckResult{
			Name:       name,
			Status:     CheckError,
			Message:    fmt.Sprintf("%s not found: %v", program, err),
			Suggestion: suggestion,
		}
	}

	// LookProgram takes explicit paths on trust, so stat the result.
	if _, err := os.Stat(path); err != nil {
		return CheckResult{
			Name:       name,
			Status:     CheckError,
			Message:    fmt.Sprintf("%s is not accessible: %v", path, err),
			Suggestion: suggestion,
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckPass,
		Message: fmt.Sprintf("%s resolved to %s", program, path),
	}
}

// checkEvaluator checks that the Nix evaluator resolves, including the
// Determinate Nix profile fallback.
func checkEvaluator(program string) CheckResult {
	path, err := registry.EvaluatorPath(program)
	if err != nil {
		return CheckResult{
			Name:       "Nix evaluator",
			Status:     CheckError,
			Message:    err.Error(),
			Suggestion: "install Nix or point nix_program at the evaluator binary",
		}
	}

	if _, err := os.Stat(path); err != nil {
		return CheckResult{
			Name:       "Nix evaluator",
			Status:     CheckError,
			Message:    fmt.Sprintf("%s is not accessible: %v", path, err),
			Suggestion: "install Nix or point nix_program at the evaluator binary",
		}
	}

	return CheckResult{
		Name:    "Nix evaluator",
		Status:  CheckPass,
		Message: fmt.Sprintf("%s resolved to %s", program, path),
	}
}

// checkRulesFile checks that a rules file is reachable from dir.
func checkRulesFile(dir, rulesName string) CheckResult {
	loc, err := registry.LocateFrom(dir, rulesName)
	if err != nil {
		return CheckResult{
			Name:       "Rules file",
			Status:     CheckError,
			Message:    fmt.Sprintf("no %s found in %s or any directory above it", rulesName, dir),
			Suggestion: fmt.Sprintf("create a %s declaring your secrets and their publicKeys", rulesName),
		}
	}

	return CheckResult{
		Name:    "Rules file",
		Status:  CheckPass,
		Message: fmt.Sprintf("found %s", loc.File),
	}
}

// checkStateDir checks that the state directory can be created and
// written to.
func checkStateDir() CheckResult {
	dir, err := config.StateDir()
	if err != nil {
		return CheckResult{
			Name:       "State directory",
			Status:     CheckError,
			Message:    fmt.Sprintf("cannot create state directory: %v", err),
			Suggestion: "check permissions on XDG_STATE_HOME or ~/.local/state",
		}
	}

	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return CheckResult{
			Name:       "State directory",
			Status:     CheckError,
			Message:    fmt.Sprintf("%s is not writable: %v", dir, err),
			Suggestion: fmt.Sprintf("check permissions on %s", dir),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{
		Name:    "State directory",
		Status:  CheckPass,
		Message: fmt.Sprintf("%s is writable", dir),
	}
}

// checkIdentities produces one check per configured identity entry plus
// an aggregate error when none of them exists on this machine. A single
// missing identity is only a warning; configs are shared across machines
// that do not all carry the same keys.
func checkIdentities(ctx context.Context, cfg *config.Config) []CheckResult {
	if len(cfg.Identities) == 0 {
		return []CheckResult{{
			Name:       "Identities",
			Status:     CheckError,
			Message:    "no identities configured",
			Suggestion: "add an [[identity]] entry to the config file",
		}}
	}

	var results []CheckResult
	usable := 0
	for _, entry := range cfg.Identities {
		label := identityLabel(entry)

		path, err := identity.Resolve(ctx, entry)
		if err != nil {
			results = append(results, CheckResult{
				Name:       label,
				Status:     CheckWarning,
				Message:    err.Error(),
				Suggestion: "fix or remove the [[identity]] entry",
			})
			continue
		}

		expanded, err := utils.ExpandPath(path)
		if err != nil {
			results = append(results, CheckResult{
				Name:    label,
				Status:  CheckWarning,
				Message: fmt.Sprintf("cannot expand %s: %v", path, err),
			})
			continue
		}

		if !utils.FileExists(expanded) {
			results = append(results, CheckResult{
				Name:       label,
				Status:     CheckWarning,
				Message:    fmt.Sprintf("%s does not exist", expanded),
				Suggestion: "generate the key with ssh-keygen or remove the entry",
			})
			continue
		}

		usable++
		results = append(results, inspectKeyFile(label, expanded))
	}

	if usable == 0 {
		results = append(results, CheckResult{
			Name:       "Identities",
			Status:     CheckError,
			Message:    "none of the configured identities exist on this machine",
			Suggestion: "generate a key with 'ssh-keygen -t ed25519' or point an [[identity]] entry at an existing one",
		})
	}
	return results
}

// inspectKeyFile classifies an existing identity file and checks its
// permissions.
func inspectKeyFile(label, path string) CheckResult {
	info, err := os.Stat(path)
	if err != nil {
		return CheckResult{
			Name:    label,
			Status:  CheckWarning,
			Message: fmt.Sprintf("cannot stat %s: %v", path, err),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CheckResult{
			Name:       label,
			Status:     CheckWarning,
			Message:    fmt.Sprintf("cannot read %s: %v", path, err),
			Suggestion: fmt.Sprintf("check the ownership and permissions of %s", path),
		}
	}

	var detail string
	key, err := ssh.ParseRawPrivateKey(data)
	var passErr *ssh.PassphraseMissingError
	switch {
	case err == nil:
		detail = fmt.Sprintf("%s key, not passphrase protected", keyTypeName(key))
	case errors.As(err, &passErr):
		detail = "passphrase protected, will prompt when used"
	case bytes.Contains(data, []byte("AGE-SECRET-KEY-1")):
		detail = "age identity"
	default:
		return CheckResult{
			Name:       label,
			Status:     CheckWarning,
			Message:    fmt.Sprintf("unrecognized private key format: %v", err),
			Suggestion: "make sure the entry points at an SSH private key",
		}
	}

	if mode := info.Mode().Perm(); mode != 0600 {
		return CheckResult{
			Name:       label,
			Status:     CheckWarning,
			Message:    fmt.Sprintf("%s, but permissions are %04o", detail, mode),
			Suggestion: fmt.Sprintf("run 'chmod 600 %s'", path),
		}
	}

	return CheckResult{
		Name:    label,
		Status:  CheckPass,
		Message: detail,
	}
}

// identityLabel names an identity entry for check output, mirroring the
// resolution precedence in identity.Resolve.
func identityLabel(entry config.IdentityEntry) string {
	switch {
	case entry.Func != nil:
		return "Identity (dynamic)"
	case entry.Command != "":
		return fmt.Sprintf("Identity from %q", entry.Command)
	default:
		return "Identity " + entry.Path
	}
}

// keyTypeName names the algorithm of a parsed private key.
func keyTypeName(key any) string {
	switch key.(type) {
	case *rsa.PrivateKey:
		return "rsa"
	case *ecdsa.PrivateKey:
		return "ecdsa"
	case *ed25519.PrivateKey:
		return "ed25519"
	default:
		return "unknown"
	}
}

// calculateDoctorSummary calculates the counts of checks by status.
func calculateDoctorSummary(results []CheckResult) DoctorSummary {
	var summary DoctorSummary
	for _, result := range results {
		switch result.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarning:
			summary.Warnings++
		case CheckError:
			summary.Errors++
		}
	}
	return summary
}
