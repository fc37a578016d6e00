package age

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/PolarWolf314/agedit/internal/config"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// Decrypt runs the encryption tool on the file at encryptedPath with one
// --identity flag per key file and returns the plaintext from stdout,
// byte for byte. No newline normalization happens here or anywhere
// between the tool and the editor.
func Decrypt(ctx context.Context, cfg *config.Config, encryptedPath string, identityPaths []string) ([]byte, error) {
	if len(identityPaths) == 0 {
		return nil, fmt.Errorf("%w: nothing to decrypt %s with", aerrors.ErrNoIdentities, encryptedPath)
	}

	program, err := utils.LookProgram(cfg.AgeProgram)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aerrors.ErrDecryptFailed, err)
	}

	args := []string{"--decrypt"}
	for _, path := range identityPaths {
		args = append(args, "--identity", path)
	}
	args = append(args, encryptedPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", aerrors.ErrDecryptFailed, utils.CommandFailure(err, stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// Encrypt encrypts plaintext to the given recipients and replaces
// outputPath. The tool writes into a temp file in the output directory;
// the rename over outputPath happens only after a zero exit, so a failed
// encrypt leaves an existing secret byte-for-byte intact. An empty
// recipient set fails before any subprocess is launched: that file could
// never be decrypted again.
func Encrypt(ctx context.Context, cfg *config.Config, plaintext []byte, recipients []string, outputPath string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: refusing to encrypt %s for nobody", aerrors.ErrNoRecipients, outputPath)
	}

	program, err := utils.LookProgram(cfg.AgeProgram)
	if err != nil {
		return fmt.Errorf("%w: %v", aerrors.ErrEncryptFailed, err)
	}

	// Keep the mode of the file being replaced. Fresh secrets get 0644:
	// the content is ciphertext and usually ends up in version control.
	mode := os.FileMode(0644)
	if info, statErr := os.Stat(outputPath); statErr == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{"--encrypt"}
	for _, recipient := range recipients {
		args = append(args, "--recipient", recipient)
	}
	args = append(args, "-o", tmpPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdin = bytes.NewReader(plaintext)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", aerrors.ErrEncryptFailed, utils.CommandFailure(err, stderr.Bytes()))
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("failed to move encrypted file into place: %w", err)
	}
	return nil
}
