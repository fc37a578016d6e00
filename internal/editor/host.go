package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/PolarWolf314/agedit/internal/config"
	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/session"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// TempFileHost is the terminal editing surface: it holds the document in
// memory and edits it by round-tripping through a 0600 temp file opened
// in the user's editor. The temp file lives in a private 0700 directory
// and is shredded as soon as the editor exits, whatever the outcome.
type TempFileHost struct {
	cfg      *config.Config
	log      logger.Logger
	fileName string
	content  []byte
}

// NewTempFileHost returns a host for editing the named secret. The temp
// file is named after the secret minus its .age suffix so editors pick a
// sensible mode for the plaintext.
func NewTempFileHost(cfg *config.Config, secretPath string, log logger.Logger) *TempFileHost {
	name := strings.TrimSuffix(filepath.Base(secretPath), ".age")
	if name == "" {
		name = "secret"
	}
	return &TempFileHost{cfg: cfg, log: log, fileName: name}
}

func (h *TempFileHost) SetPlaintext(content []byte) error {
	h.content = slices.Clone(content)
	return nil
}

func (h *TempFileHost) Plaintext() ([]byte, error) {
	return slices.Clone(h.content), nil
}

// Checkpoint is an identity operation: no view state survives an
// external editor process.
func (h *TempFileHost) Checkpoint() (session.HostToken, error) {
	return nil, nil
}

func (h *TempFileHost) Restore(token session.HostToken) error {
	return nil
}

// EditExternally writes the document to a private temp file, launches the
// user's editor on it attached to the current terminal, and reads the
// result back. It reports whether the content changed. The temp file is
// removed in every case, including editor failure.
func (h *TempFileHost) EditExternally(ctx context.Context) (bool, error) {
	dir, err := utils.PrivateTempDir("agedit-edit-")
	if err != nil {
		return false, err
	}
	path := filepath.Join(dir, h.fileName)
	defer func() {
		if err := utils.ShredFile(path); err != nil {
			h.log.Warnf("failed to shred editor temp file: %v", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			h.log.Warnf("failed to remove editor temp dir: %v", err)
		}
	}()

	if err := os.WriteFile(path, h.content, 0600); err != nil {
		return false, fmt.Errorf("failed to write editor temp file: %w", err)
	}

	editorCmd := ResolveEditor(h.cfg)
	h.log.Debugf("launching editor: %s %s", editorCmd, path)

	// The editor setting may carry arguments ("code --wait"), so it runs
	// through the shell with the path appended as a positional parameter.
	cmd := exec.CommandContext(ctx, "sh", "-c", editorCmd+` "$1"`, "agedit-editor", path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("editor %s failed: %w", editorCmd, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read back editor temp file: %w", err)
	}

	changed := !bytes.Equal(edited, h.content)
	h.content = edited
	return changed, nil
}

// ResolveEditor picks the editor command: the config override first, then
// $VISUAL, then $EDITOR, then vi.
func ResolveEditor(cfg *config.Config) string {
	if cfg.Editor != "" {
		return cfg.Editor
	}
	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return "vi"
}
