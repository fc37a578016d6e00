package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// IsProtected reports whether the private key at path requires a
// passphrase. It asks the keytool to derive the public key using an empty
// passphrase; if that fails the key is treated as protected. A key that is
// unreadable for other reasons lands in the same bucket, which is the
// conservative answer: the user gets asked before the key is used.
//
// The probe holds no state. Callers that probe several candidates within
// one operation cache the answers themselves.
func IsProtected(ctx context.Context, keytool, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, keytool, "-y", "-P", "", "-f", path)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return true, nil
	}
	return false, fmt.Errorf("failed to run %s: %w", keytool, err)
}
