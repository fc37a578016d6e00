package identity

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writeFakeTool writes an executable shell script into dir and returns its
// path. Tests that depend on it skip on Windows.
func writeFakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require sh")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
	return path
}

// writeKeyFile creates a file standing in for a private key.
func writeKeyFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write key file %s: %v", name, err)
	}
	return path
}

// entryCount returns how many entries dir currently holds.
func entryCount(t *testing.T, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	return len(entries)
}

// fakeKeytool behaves like ssh-keygen for the two invocations agedit
// makes. Probe mode (-y) succeeds unless the key file contains PROTECTED.
// Rekey mode (-p) rewrites the file when given the passphrase "sesame".
const fakeKeytool = `
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
