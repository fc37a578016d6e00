package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/agedit/internal/audit"
	"github.com/PolarWolf314/agedit/internal/config"
	"github.com/PolarWolf314/agedit/internal/editor"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/session"
	"github.com/PolarWolf314/agedit/internal/ui"
	"github.com/PolarWolf314/agedit/internal/utils"

	"github.com/spf13/cobra"
)

var (
	viewIdentity string
)

func init() {
	viewCmd.Flags().StringVarP(&viewIdentity, "identity", "i", "", "decrypt with this identity file instead of the configured ones")
}

// resetViewCommandState resets the view command's global state for testing.
func resetViewCommandState() {
	viewIdentity = ""
}

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Print the decrypted contents of a secret",
	Long: `Decrypts the secret and writes the plaintext to stdout. Nothing is
written to disk. Unlike edit, view does not consult the rules file, so
it works on any age-encrypted file you hold an identity for.

Examples:
  # Print a secret
  agedit view secrets/api-key.age

  # Pipe a secret into another tool
  agedit view secrets/db-password.age | psql --password-from-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting view command")
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	prompter := &editor.TerminalPrompter{}
	if viewIdentity != "" {
		Logger.Debugf("Using identity override: %s", viewIdentity)
		cfg.Identities = []config.IdentityEntry{{Path: viewIdentity}}
		prompter.Preselect = viewIdentity
	}

	secretPath, err := filepath.Abs(args[0])
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to resolve path %s: %v", args[0], err)
	}
	if !utils.FileExists(secretPath) {
		fmt.Fprintln(os.Stderr, ui.Error.Sprint("✗")+" "+ui.Path.Sprint(args[0])+" does not exist")
		return fmt.Errorf("no such file: %s", args[0])
	}

	// No spinner here: stdout must carry nothing but the plaintext so the
	// command stays pipeable.
	plaintext, err := session.DecryptForRead(ctx, cfg, secretPath, prompter, Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatViewError(err, args[0]))
		if errors.Is(err, aerrors.ErrCanceled) {
			return nil
		}
		return err
	}

	trail := audit.NewTrail(cfg, Logger)
	trail.Record("view", secretPath, 0, prompter.LastChoice())

	if _, err := os.Stdout.Write(plaintext); err != nil {
		return fmt.Errorf("failed to write plaintext: %w", err)
	}
	// Secrets often lack a trailing newline. Add one on a terminal so the
	// shell prompt starts on its own line, but never when piped.
	if len(plaintext) > 0 && plaintext[len(plaintext)-1] != '\n' && utils.IsTerminal() {
		fmt.Println()
	}
	return nil
}

// formatViewError formats a decrypt failure for display to the user.
func formatViewError(err error, path string) string {
	switch {
	case errors.Is(err, aerrors.ErrNoIdentities):
		return ui.Error.Sprint("✗") + " No usable identity found\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("agedit doctor") + " to see which identities were tried"

	case errors.Is(err, aerrors.ErrIdentityUnlock):
		return ui.Error.Sprint("✗") + " Failed to unlock the identity\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrDecryptFailed):
		return ui.Error.Sprint("✗") + " Failed to decrypt " + ui.Path.Sprint(path) + "\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrCanceled):
		return ui.Warning.Sprint("⚠") + " Canceled."

	default:
		return ui.Error.Sprint("✗") + " Failed to read " + ui.Path.Sprint(path) + "\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()
	}
}
