package identity

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// Ephemeral is a passphrase-free working copy of a protected private key.
// It lives in a private temp directory for the duration of a single
// decrypt and must be destroyed afterward. Every successful NewEphemeral
// is paired with exactly one Destroy, normally deferred at the call site.
type Ephemeral struct {
	// TempPath is the unlocked copy handed to the encryption tool.
	TempPath string

	// SourcePath is the protected original, which is never modified.
	SourcePath string

	dir       string
	destroyed bool
}

// NewEphemeral copies the protected key at path into a fresh private temp
// directory and strips its passphrase in place with the keytool. On any
// failure the partial copy is removed before returning, so no unlocked
// material outlives the error. A wrong passphrase returns
// ErrIdentityUnlock carrying the keytool's diagnostic.
func NewEphemeral(ctx context.Context, keytool, path string, passphrase []byte) (*Ephemeral, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity %s: %w", path, err)
	}

	dir, err := utils.PrivateTempDir("agedit-identity-")
	if err != nil {
		return nil, fmt.Errorf("failed to create private temp directory: %w", err)
	}

	e := &Ephemeral{
		TempPath:   filepath.Join(dir, filepath.Base(path)),
		SourcePath: path,
		dir:        dir,
	}

	if err := os.WriteFile(e.TempPath, keyData, 0600); err != nil {
		_ = e.Destroy()
		return nil, fmt.Errorf("failed to copy identity into %s: %w", dir, err)
	}

	cmd := exec.CommandContext(ctx, keytool, "-p", "-P", string(passphrase), "-N", "", "-f", e.TempPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = e.Destroy()
		return nil, fmt.Errorf("%w: %s", aerrors.ErrIdentityUnlock, utils.CommandFailure(err, stderr.Bytes()))
	}

	return e, nil
}

// Destroy removes the unlocked copy, best-effort overwriting it with
// zeros first. It is idempotent so callers can defer it unconditionally.
func (e *Ephemeral) Destroy() error {
	if e == nil || e.destroyed {
		return nil
	}
	e.destroyed = true

	shredErr := utils.ShredFile(e.TempPath)
	removeErr := os.RemoveAll(e.dir)
	if shredErr != nil {
		return fmt.Errorf("failed to shred %s: %w", e.TempPath, shredErr)
	}
	if removeErr != nil {
		return fmt.Errorf("failed to remove %s: %w", e.dir, removeErr)
	}
	return nil
}
