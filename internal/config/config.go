package config

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IdentityEntry is one configured private-key candidate. Exactly one of
// the three fields should be set: a literal Path, a Command whose first
// stdout line is the path, or (for library callers only) a Func that
// computes the path. Command and Func entries exist to integrate with
// external secret-environment providers that know where key material
// lives.
type IdentityEntry struct {
	Path    string `toml:"path,omitempty"`
	Command string `toml:"command,omitempty"`

	// Func is not representable in the config file; embedders register it
	// programmatically.
	Func func() (string, error) `toml:"-"`
}

// Config is the complete agedit configuration. It is loaded once at
// command start and passed by pointer into sessions and workflows; nothing
// mutates it afterward, which keeps sessions independently testable.
type Config struct {
	// AgeProgram is the encryption tool. Resolved via PATH when not absolute.
	AgeProgram string `toml:"age_program"`

	// KeytoolProgram probes and rekeys SSH identities.
	KeytoolProgram string `toml:"keytool_program"`

	// NixProgram evaluates the rules file.
	NixProgram string `toml:"nix_program"`

	// RulesName is the rules file searched for in ancestor directories of a
	// secret.
	RulesName string `toml:"rules_name"`

	// Identities are the private-key candidates, in selection order.
	Identities []IdentityEntry `toml:"identity"`

	// Editor overrides $VISUAL/$EDITOR for the edit command.
	Editor string `toml:"editor"`

	// SetupCommand runs via the shell before a session opens. Stdout lines
	// of the form KEY=VALUE are applied to the process environment, so the
	// hook can inject PATH entries for the external tools.
	SetupCommand string `toml:"setup_command"`

	// AuditLog controls the JSONL audit trail under the state directory.
	AuditLog bool `toml:"audit_log"`
}

// Default returns the configuration used when no config file exists:
// standard tool names resolved from PATH and the conventional SSH key
// locations.
func Default() *Config {
	return &Config{
		AgeProgram:     "age",
		KeytoolProgram: "ssh-keygen",
		NixProgram:     "nix-instantiate",
		RulesName:      "secrets.nix",
		Identities: []IdentityEntry{
			{Path: "~/.ssh/id_ed25519"},
			{Path: "~/.ssh/id_rsa"},
		},
		AuditLog: true,
	}
}

// Path returns the location of the user config file.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "agedit", "config.toml"), nil
}

// Load reads the user config file, returning defaults when it does not
// exist. Fields absent from the file keep their default values.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path, returning defaults when it does
// not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// A file that declares its own identity list replaces the default list
	// rather than appending to it.
	cfg.Identities = nil
	if err := LoadTOML(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if len(cfg.Identities) == 0 {
		cfg.Identities = Default().Identities
	}
	return cfg, nil
}

// StateDir returns the directory for persistent agedit state such as the
// audit log, creating it if needed.
func StateDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		base = filepath.Join(homeDir, ".local", "state")
	}

	dir := filepath.Join(base, "agedit")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory at %s: %w", dir, err)
	}
	return dir, nil
}

// RunSetupHook executes SetupCommand through the shell and applies any
// KEY=VALUE lines from its stdout to the process environment. It returns
// the applied assignments. A missing SetupCommand is a no-op. Hook
// failures are returned for the caller to warn about; they never stop a
// session from opening.
func (c *Config) RunSetupHook(ctx context.Context) ([]string, error) {
	if c.SetupCommand == "" {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.SetupCommand)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("setup command failed: %w", err)
	}

	var applied []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return applied, fmt.Errorf("failed to set %s from setup command: %w", key, err)
		}
		applied = append(applied, key+"="+value)
	}
	return applied, nil
}
