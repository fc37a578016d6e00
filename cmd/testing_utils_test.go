// Testing utilities shared between the command integration tests: a fake
// agedit installation, output capture, and a driver for the real root
// command.
package cmd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/PolarWolf314/agedit/internal/audit"
)

// cliRecipient is the valid age X25519 recipient the fake evaluator
// declares for every well-formed rule.
const cliRecipient = "age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p"

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	// Save original stdout and stderr
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	// Create pipes to capture output
	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	// Replace stdout and stderr
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	// Channel to collect output
	outputChan := make(chan string, 2)

	// Start goroutines to read from pipes
	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stdoutReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stderrReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	// Execute the function
	err := fn()

	// Close writers to signal EOF
	stdoutWriter.Close()
	stderrWriter.Close()

	// Restore original stdout and stderr
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	// Collect output
	stdout := <-outputChan
	stderr := <-outputChan

	return stdout + stderr, err
}

// runCommand resets command state and executes the real root command with
// the given arguments, returning the combined stdout and stderr.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ResetGlobalState()
	root := GetRootCmd()
	root.SetArgs(args)
	return captureOutput(func() error {
		return root.Execute()
	})
}

// cliEnv is a complete fake installation: a config file pointing at fake
// external tools, one unprotected identity, and a project tree with a
// rules file. Commands run against it end to end through config.Load.
type cliEnv struct {
	root        string
	toolDir     string
	keyPath     string
	configPath  string
	agePath     string
	keytoolPath string
	nixPath     string
	failMarker  string
}

// newCLIEnv builds the fake installation. names become the rule keys the
// evaluator's attrNames query reports; the default editor rewrites
// whatever it is given.
func newCLIEnv(t *testing.T, names ...string) *cliEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("command tests require sh")
	}

	env := &cliEnv{
		root:    t.TempDir(),
		toolDir: t.TempDir(),
	}
	env.failMarker = filepath.Join(env.toolDir, "fail-encrypt")

	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	env.configPath = filepath.Join(configHome, "agedit", "config.toml")

	// The key only needs to look like an age identity; the fake tools
	// never actually parse it.
	env.keyPath = filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(env.keyPath, []byte("AGE-SECRET-KEY-1TESTTESTTESTTESTTESTTESTTESTTESTTESTTESTTESTTESTTEST\n"), 0600); err != nil {
		t.Fatalf("failed to write identity: %v", err)
	}

	env.agePath = env.writeTool(t, "age", env.fakeAgeScript())
	env.keytoolPath = env.writeTool(t, "ssh-keygen", cliKeytoolScript)
	env.nixPath = env.writeTool(t, "nix-instantiate", fakeEvaluatorScript(t, names))

	if err := os.WriteFile(filepath.Join(env.root, "secrets.nix"), []byte("{ }\n"), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	env.writeConfig(t, env.writeTool(t, "editor", rewritingEditorScript))
	return env
}

func (e *cliEnv) writeTool(t *testing.T, name, script string) string {
	t.Helper()

	path := filepath.Join(e.toolDir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
	return path
}

// writeConfig writes the config file with the given editor, keeping the
// fake tools and the single identity.
func (e *cliEnv) writeConfig(t *testing.T, editor string) {
	t.Helper()

	body := fmt.Sprintf(`age_program = %q
keytool_program = %q
nix_program = %q
editor = %q

[[identity]]
path = %q
`, e.agePath, e.keytoolPath, e.nixPath, editor, e.keyPath)

	if err := os.MkdirAll(filepath.Dir(e.configPath), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(e.configPath, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

// setEditor swaps the configured editor for a different fake.
func (e *cliEnv) setEditor(t *testing.T, script string) {
	t.Helper()
	e.writeConfig(t, e.writeTool(t, "editor", script))
}

// rewritingEditorScript replaces the document with known content, standing
// in for a user who edits and saves.
const rewritingEditorScript = `#!/bin/sh
printf 'rewritten by editor\n' > "$1"
`

// noopEditorScript exits without touching the document, standing in for a
// user who quits immediately.
const noopEditorScript = `#!/bin/sh
exit 0
`

// fakeAgeScript base64-encodes on encrypt and decodes on decrypt. Encrypt
// fails while the fail marker exists.
func (e *cliEnv) fakeAgeScript() string {
	return fmt.Sprintf(`#!/bin/sh
mode=""
out=""
file=""
while [ $# -gt 0 ]; do
  case "$1" in
    --decrypt) mode=decrypt; shift ;;
    --encrypt) mode=encrypt; shift ;;
    --identity) shift 2 ;;
    --recipient) shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) file="$1"; shift ;;
  esac
done
if [ "$mode" = "decrypt" ]; then
  exec base64 -d "$file"
fi
if [ -e %s ]; then
  rm -f %s
  echo "age: error: encryption rejected" >&2
  exit 1
fi
base64 > "$out"
`, e.failMarker, e.failMarker)
}

// cliKeytoolScript stands in for ssh-keygen: every key probes as
// unprotected, so commands never prompt.
const cliKeytoolScript = `#!/bin/sh
echo "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5 fake"
exit 0
`

// fakeEvaluatorScript answers attrNames queries with the given rule keys
// and publicKeys queries with one valid recipient.
func fakeEvaluatorScript(t *testing.T, names []string) string {
	t.Helper()

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	namesJSON := "[" + strings.Join(quoted, ",") + "]"

	return fmt.Sprintf(`#!/bin/sh
expr=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-E" ]; then expr="$arg"; fi
  prev="$arg"
done
case "$expr" in
  *attrNames*) printf '%%s' '%s' ;;
  *) printf '%%s' '["%s"]' ;;
esac
`, namesJSON, cliRecipient)
}

// writeSecret stores plaintext at a path relative to the project root in
// the fake ciphertext encoding.
func (e *cliEnv) writeSecret(t *testing.T, rel, plaintext string) string {
	t.Helper()

	path := filepath.Join(e.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(plaintext))
	if err := os.WriteFile(path, []byte(encoded), 0644); err != nil {
		t.Fatalf("failed to write secret %s: %v", rel, err)
	}
	return path
}

// secretPlaintext decodes an on-disk secret back to plaintext.
func (e *cliEnv) secretPlaintext(t *testing.T, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read secret %s: %v", rel, err)
	}
	raw := strings.ReplaceAll(string(data), "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("secret %s on disk is not fake ciphertext: %v", rel, err)
	}
	return string(decoded)
}

// failEncrypts makes the next encrypt invocation fail. The marker is
// consumed by the failure, so a retry afterwards succeeds.
func (e *cliEnv) failEncrypts(t *testing.T) {
	t.Helper()

	if err := os.WriteFile(e.failMarker, nil, 0644); err != nil {
		t.Fatalf("failed to arm encrypt failure: %v", err)
	}
}

// withStdin replaces stdin with the given input for the duration of fn.
func withStdin(t *testing.T, input string, fn func()) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: %v", err)
	}
	original := os.Stdin
	os.Stdin = r
	defer func() {
		os.Stdin = original
		r.Close()
	}()

	go func() {
		defer w.Close()
		_, _ = w.WriteString(input)
	}()

	fn()
}

// auditOperations reads back the operations recorded in the audit trail,
// in order.
func auditOperations(t *testing.T) []string {
	t.Helper()

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("failed to read audit trail: %v", err)
	}
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	return ops
}
