package session

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/PolarWolf314/agedit/internal/config"
)

// sessionRecipient is a valid age X25519 recipient the fake evaluator
// declares for every secret.
const sessionRecipient = "age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p"

// memoryHost is an in-memory Host that records every call, letting tests
// assert both content and call order.
type memoryHost struct {
	content []byte
	calls   []string
}

func (h *memoryHost) SetPlaintext(content []byte) error {
	h.calls = append(h.calls, "set")
	h.content = slices.Clone(content)
	return nil
}

func (h *memoryHost) Plaintext() ([]byte, error) {
	h.calls = append(h.calls, "plaintext")
	return slices.Clone(h.content), nil
}

func (h *memoryHost) Checkpoint() (HostToken, error) {
	h.calls = append(h.calls, "checkpoint")
	return len(h.calls), nil
}

func (h *memoryHost) Restore(token HostToken) error {
	h.calls = append(h.calls, "restore")
	return nil
}

// edit simulates the user changing the document through the host.
func (h *memoryHost) edit(s *Session, content string) {
	h.content = []byte(content)
	s.MarkDirty()
}

// scriptedPrompter answers identity prompts from canned values and counts
// how often each prompt fired.
type scriptedPrompter struct {
	choice     string
	chooseErr  error
	passphrase string
	passErr    error

	chooseCalls int
	passCalls   int
	candidates  []string
}

func (p *scriptedPrompter) ChooseIdentity(candidates []string) (string, error) {
	p.chooseCalls++
	p.candidates = slices.Clone(candidates)
	if p.chooseErr != nil {
		return "", p.chooseErr
	}
	return p.choice, nil
}

func (p *scriptedPrompter) Passphrase(identityPath string) ([]byte, error) {
	p.passCalls++
	if p.passErr != nil {
		return nil, p.passErr
	}
	// DecryptForRead zeroes the buffer it is given, so hand out a copy.
	return []byte(p.passphrase), nil
}

// sessionEnv is a complete fake project: a rules file, fake age, keytool
// and evaluator binaries, key files, and XDG_RUNTIME_DIR pointed at a
// private directory so leaked temp files are detectable.
type sessionEnv struct {
	cfg        *config.Config
	root       string
	secret     string
	keyDir     string
	toolDir    string
	runtimeDir string
	failMarker string
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("session tests require sh")
	}

	env := &sessionEnv{
		root:       t.TempDir(),
		keyDir:     t.TempDir(),
		toolDir:    t.TempDir(),
		runtimeDir: t.TempDir(),
	}
	env.secret = filepath.Join(env.root, "secret.age")
	env.failMarker = filepath.Join(env.toolDir, "fail-encrypt")
	t.Setenv("XDG_RUNTIME_DIR", env.runtimeDir)

	if err := os.WriteFile(filepath.Join(env.root, "secrets.nix"), []byte("{ }\n"), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	env.cfg = config.Default()
	env.cfg.Identities = nil
	env.cfg.AgeProgram = env.writeTool(t, "age", env.fakeAgeScript())
	env.cfg.KeytoolProgram = env.writeTool(t, "ssh-keygen", fakeKeytoolScript)
	env.cfg.NixProgram = env.writeTool(t, "nix-instantiate", env.fakeEvaluatorScript())
	return env
}

func (e *sessionEnv) writeTool(t *testing.T, name, script string) string {
	t.Helper()

	path := filepath.Join(e.toolDir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
	return path
}

// fakeAgeScript base64-encodes on encrypt and decodes on decrypt. Decrypt
// refuses identities whose file still contains PROTECTED, exactly like
// the real tool refuses a passphrase-protected key, which proves the
// unlocked ephemeral copy is the one actually used. Encrypt fails while
// the fail marker exists.
func (e *sessionEnv) fakeAgeScript() string {
	return fmt.Sprintf(`#!/bin/sh
mode=""
out=""
file=""
identities=""
while [ $# -gt 0 ]; do
  case "$1" in
    --decrypt) mode=decrypt; shift ;;
    --encrypt) mode=encrypt; shift ;;
    --identity) identities="$identities $2"; shift 2 ;;
    --recipient) shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) file="$1"; shift ;;
  esac
done
if [ "$mode" = "decrypt" ]; then
  for id in $identities; do
    if grep -q PROTECTED "$id" 2>/dev/null; then
      echo "age: error: private key is passphrase protected" >&2
      exit 1
    fi
  done
  exec base64 -d "$file"
fi
if [ -e %s ]; then
  echo "age: error: encryption rejected" >&2
  exit 1
fi
base64 > "$out"
`, e.failMarker)
}

// fakeKeytoolScript stands in for ssh-keygen: probe mode (-y) fails for
// keys containing PROTECTED, rekey mode (-p) accepts the passphrase
// "sesame" and rewrites the key as UNLOCKED.
const fakeKeytoolScript = `#!/bin/sh
mode=probe
pass=""
file=""
while [ $# -gt 0 ]; do
  case "$1" in
    -p) mode=rekey; shift ;;
    -P) pass="$2"; shift 2 ;;
    -f) file="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ "$mode" = "probe" ]; then
  if grep -q PROTECTED "$file" 2>/dev/null; then
    echo "Load key \"$file\": incorrect passphrase supplied to decrypt private key" >&2
    exit 255
  fi
  echo "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5 fake"
  exit 0
fi
if [ "$pass" = "sesame" ]; then
  printf 'UNLOCKED' > "$file"
  exit 0
fi
echo "Failed to load key $file: incorrect passphrase supplied to decrypt private key" >&2
exit 1
`

// fakeEvaluatorScript declares the same single recipient for every rule
// key and logs each run, so tests can prove the rules file is evaluated
// exactly once per session. Registry behavior has its own tests.
func (e *sessionEnv) fakeEvaluatorScript() string {
	return fmt.Sprintf(`#!/bin/sh
echo run >> %s
printf '%%s' '["age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p"]'
`, filepath.Join(e.toolDir, "eval.log"))
}

// evalRuns counts how many times the fake evaluator has been invoked.
func (e *sessionEnv) evalRuns(t *testing.T) int {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(e.toolDir, "eval.log"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read eval log: %v", err)
	}
	return strings.Count(string(data), "run")
}

// addIdentity writes a key file and appends it to the configured
// identities. Content containing PROTECTED makes it probe as protected.
func (e *sessionEnv) addIdentity(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(e.keyDir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write key %s: %v", name, err)
	}
	e.cfg.Identities = append(e.cfg.Identities, config.IdentityEntry{Path: path})
	return path
}

// writeSecret stores plaintext at the secret path in the fake ciphertext
// encoding.
func (e *sessionEnv) writeSecret(t *testing.T, plaintext string) {
	t.Helper()

	encoded := base64.StdEncoding.EncodeToString([]byte(plaintext))
	if err := os.WriteFile(e.secret, []byte(encoded), 0644); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
}

// secretCiphertext returns the raw on-disk bytes of the secret.
func (e *sessionEnv) secretCiphertext(t *testing.T) []byte {
	t.Helper()

	data, err := os.ReadFile(e.secret)
	if err != nil {
		t.Fatalf("failed to read secret: %v", err)
	}
	return data
}

// secretPlaintext decodes the on-disk secret back to plaintext.
func (e *sessionEnv) secretPlaintext(t *testing.T) string {
	t.Helper()

	raw := strings.ReplaceAll(string(e.secretCiphertext(t)), "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("secret on disk is not fake ciphertext: %v", err)
	}
	return string(decoded)
}

// failEncrypts makes every subsequent encrypt invocation fail.
func (e *sessionEnv) failEncrypts(t *testing.T) {
	t.Helper()

	if err := os.WriteFile(e.failMarker, nil, 0644); err != nil {
		t.Fatalf("failed to arm encrypt failure: %v", err)
	}
}

// allowEncrypts re-enables encryption after failEncrypts.
func (e *sessionEnv) allowEncrypts(t *testing.T) {
	t.Helper()

	if err := os.Remove(e.failMarker); err != nil {
		t.Fatalf("failed to disarm encrypt failure: %v", err)
	}
}

// leakedTempEntries counts entries left in the private runtime dir.
// Anything non-zero means an ephemeral identity escaped cleanup.
func (e *sessionEnv) leakedTempEntries(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir(e.runtimeDir)
	if err != nil {
		t.Fatalf("failed to read runtime dir: %v", err)
	}
	return len(entries)
}
