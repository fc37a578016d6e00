package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

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
	editIdentity string
)

func init() {
	editCmd.Flags().StringVarP(&editIdentity, "identity", "i", "", "decrypt with this identity file instead of the configured ones")
}

// resetEditCommandState resets the edit command's global state for testing.
func resetEditCommandState() {
	editIdentity = ""
}

var editCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Edit an age-encrypted file in place",
	Long: `Decrypts the secret into a private temporary file, opens your editor on
it, and re-encrypts the result for the recipients declared in the rules
file. The plaintext never touches the repository, and the temporary file
is shredded when the session ends.

A secret that does not exist yet is created: the editor opens empty and
the first save writes the encrypted file.

Examples:
  # Edit a secret with the editor from $VISUAL or $EDITOR
  agedit edit secrets/api-key.age

  # Force a specific identity instead of trying the configured ones
  agedit edit --identity ~/.ssh/deploy_ed25519 secrets/api-key.age`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting edit command")
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	prompter := &editor.TerminalPrompter{}
	if editIdentity != "" {
		Logger.Debugf("Using identity override: %s", editIdentity)
		cfg.Identities = []config.IdentityEntry{{Path: editIdentity}}
		prompter.Preselect = editIdentity
	}

	secretPath, err := filepath.Abs(args[0])
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to resolve path %s: %v", args[0], err)
	}

	trail := audit.NewTrail(cfg, Logger)
	host := editor.NewTempFileHost(cfg, secretPath, Logger)
	sess := session.New(cfg, secretPath, host, prompter, Logger)

	spinner, cleanup := startSpinner("Opening secret...", verbose)
	if err := sess.Open(ctx); err != nil {
		spinner.FinalMSG = formatOpenError(err, args[0], cfg)
		cleanup()
		if errors.Is(err, aerrors.ErrCanceled) {
			return nil
		}
		return err
	}
	// Stop the spinner before the editor takes over the terminal.
	cleanup()

	op := "open"
	if sess.Created() {
		op = "create"
		fmt.Println(ui.Info.Sprint("→") + " " + ui.Path.Sprint(args[0]) + " does not exist yet, starting empty")
	}
	trail.Record(op, secretPath, len(sess.Recipients()), prompter.LastChoice())

	changed, err := host.EditExternally(ctx)
	if err != nil {
		sess.Close()
		return Logger.ErrorfAndReturn("Editor failed: %v", err)
	}

	if !changed {
		sess.Close()
		fmt.Println(ui.Info.Sprint("→") + " No changes, leaving " + ui.Path.Sprint(args[0]) + " untouched")
		return nil
	}

	sess.MarkDirty()
	for {
		spinner, cleanup = startSpinner("Encrypting secret...", verbose)
		err = sess.Save(ctx)
		if err == nil {
			spinner.FinalMSG = ui.Success.Sprint("✓") + " Saved " + ui.Path.Sprint(args[0]) +
				fmt.Sprintf(" for %d recipient(s)", len(sess.Recipients()))
			cleanup()
			break
		}
		spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to save: " + err.Error()
		cleanup()

		// A failed save keeps the session dirty, so the user can retry
		// without losing their edits.
		answer, readErr := utils.ReadLine("Retry save? [y/N]: ")
		if readErr != nil {
			sess.Close()
			return err
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println(ui.Warning.Sprint("⚠") + " Discarding edits.")
			sess.Close()
			return err
		}
	}

	trail.Record("save", secretPath, len(sess.Recipients()), prompter.LastChoice())
	sess.Close()
	return nil
}

// formatOpenError formats a session open failure for display to the user.
func formatOpenError(err error, path string, cfg *config.Config) string {
	switch {
	case errors.Is(err, aerrors.ErrNoRulesFile):
		return ui.Error.Sprint("✗") + " No rules file governs " + ui.Path.Sprint(path) + "\n" +
			ui.Info.Sprint("→") + " Create a " + ui.Code.Sprint(cfg.RulesName) + " declaring the secret and its recipients"

	case errors.Is(err, aerrors.ErrRulesEval):
		return ui.Error.Sprint("✗") + " Failed to evaluate the rules file\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrNoRecipients):
		return ui.Error.Sprint("✗") + " The rules file declares no recipients for " + ui.Path.Sprint(path) + "\n" +
			ui.Info.Sprint("→") + " Add at least one public key to the secret's entry in " + ui.Code.Sprint(cfg.RulesName)

	case errors.Is(err, aerrors.ErrBadRecipient):
		return ui.Error.Sprint("✗") + " The rules file declares an invalid recipient\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrNoIdentities):
		return ui.Error.Sprint("✗") + " No usable identity found; looked for:" +
			utils.FormatPaths(identitySources(cfg)) +
			ui.Info.Sprint("→") + " Pass " + ui.Flag.Sprint("--identity") + " or run " + ui.Code.Sprint("agedit doctor")

	case errors.Is(err, aerrors.ErrIdentityUnlock):
		return ui.Error.Sprint("✗") + " Failed to unlock the identity\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrDecryptFailed):
		return ui.Error.Sprint("✗") + " Failed to decrypt " + ui.Path.Sprint(path) + "\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrCanceled):
		return ui.Warning.Sprint("⚠") + " Canceled."

	default:
		return ui.Error.Sprint("✗") + " Failed to open " + ui.Path.Sprint(path) + "\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()
	}
}
