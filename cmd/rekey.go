package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/PolarWolf314/agedit/internal/audit"
	"github.com/PolarWolf314/agedit/internal/config"
	"github.com/PolarWolf314/agedit/internal/editor"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/session"
	"github.com/PolarWolf314/agedit/internal/ui"
	"github.com/PolarWolf314/agedit/internal/workflows"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	rekeyDryRun   bool
	rekeyIdentity string
)

func init() {
	rekeyCmd.Flags().BoolVar(&rekeyDryRun, "dry-run", false, "show what would be rekeyed without touching any file")
	rekeyCmd.Flags().StringVarP(&rekeyIdentity, "identity", "i", "", "decrypt with this identity file instead of the configured ones")
}

// resetRekeyCommandState resets the rekey command's global state for testing.
func resetRekeyCommandState() {
	rekeyDryRun = false
	rekeyIdentity = ""
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey [file...]",
	Short: "Re-encrypt secrets for their currently declared recipients",
	Long: `Decrypts each secret and encrypts it again for the recipients the rules
file declares right now. Run this after adding or removing a public key
so every secret reflects the new recipient list.

With no arguments, every secret declared in the nearest rules file is
rekeyed. With file arguments, only those secrets are.

Examples:
  # Rekey everything the rules file declares
  agedit rekey

  # See what would change without touching anything
  agedit rekey --dry-run

  # Rekey a single secret
  agedit rekey secrets/api-key.age`,
	Args: cobra.ArbitraryArgs,
	RunE: runRekey,
}

// pausingPrompter stops the spinner around interactive prompts so they have
// the terminal to themselves, then restarts it.
type pausingPrompter struct {
	*editor.TerminalPrompter
	s *spinner.Spinner
}

func (p pausingPrompter) ChooseIdentity(candidates []string) (string, error) {
	p.s.Stop()
	defer p.s.Restart()
	return p.TerminalPrompter.ChooseIdentity(candidates)
}

func (p pausingPrompter) Passphrase(identityPath string) ([]byte, error) {
	p.s.Stop()
	defer p.s.Restart()
	return p.TerminalPrompter.Passphrase(identityPath)
}

func runRekey(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting rekey command")
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	term := &editor.TerminalPrompter{}
	if rekeyIdentity != "" {
		Logger.Debugf("Using identity override: %s", rekeyIdentity)
		cfg.Identities = []config.IdentityEntry{{Path: rekeyIdentity}}
		term.Preselect = rekeyIdentity
	}

	message := "Rekeying secrets..."
	if rekeyDryRun {
		message = "Checking secrets..."
	}
	spinner, cleanup := startSpinner(message, verbose)

	// The spinner only runs in quiet mode, so only then does it need
	// pausing for prompts.
	var prompter session.Prompter = term
	if !verbose && !debug {
		prompter = pausingPrompter{term, spinner}
	}

	opts := workflows.RekeyOptions{
		Paths:    args,
		DryRun:   rekeyDryRun,
		Prompter: prompter,
		Log:      Logger,
	}
	result, err := workflows.Rekey(ctx, cfg, opts)
	if err != nil {
		spinner.FinalMSG = formatRekeyError(err, cfg.RulesName)
		cleanup()
		// A canceled prompt aborts the run partway, but the secrets
		// rewritten before the prompt are rewritten for good.
		recordRekeys(cfg, result, term)
		if errors.Is(err, aerrors.ErrCanceled) {
			return nil
		}
		return err
	}
	spinner.FinalMSG = ""
	cleanup()

	recordRekeys(cfg, result, term)
	printRekeyResults(result)

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d secret(s) failed to rekey", len(result.Failed))
	}
	return nil
}

// recordRekeys writes an audit entry for every secret the run re-encrypted.
func recordRekeys(cfg *config.Config, result *workflows.RekeyResult, term *editor.TerminalPrompter) {
	if result == nil || result.DryRun {
		return
	}
	trail := audit.NewTrail(cfg, Logger)
	for _, r := range result.Rekeyed {
		trail.Record("rekey", r.Path, r.Recipients, term.LastChoice())
	}
}

// formatRekeyError formats a rekey failure for display to the user.
func formatRekeyError(err error, rulesName string) string {
	switch {
	case errors.Is(err, aerrors.ErrNoRulesFile):
		return ui.Error.Sprint("✗") + " No rules file found\n" +
			ui.Info.Sprint("→") + " Run from inside a project with a " + ui.Code.Sprint(rulesName)

	case errors.Is(err, aerrors.ErrCanceled):
		return ui.Warning.Sprint("⚠") + " Rekey interrupted."

	default:
		return ui.Error.Sprint("✗") + " Rekey failed\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()
	}
}

func printRekeyResults(result *workflows.RekeyResult) {
	if len(result.Rekeyed) == 0 && len(result.Skipped) == 0 && len(result.Failed) == 0 {
		fmt.Println("No secrets declared in the rules file.")
		return
	}

	verb := "Rekeyed"
	if result.DryRun {
		verb = "Would rekey"
	}

	for _, r := range result.Rekeyed {
		fmt.Printf("%s %s %s (%d recipient(s))\n", ui.Success.Sprint("✓"), verb, ui.Path.Sprint(r.Path), r.Recipients)
	}
	for _, path := range result.Skipped {
		fmt.Printf("%s Skipped %s %s\n", ui.Warning.Sprint("⚠"), ui.Path.Sprint(path), ui.Muted.Sprint("does not exist"))
	}
	for _, f := range result.Failed {
		fmt.Printf("%s %s: %s\n", ui.Error.Sprint("✗"), ui.Path.Sprint(f.Path), f.Reason)
	}

	fmt.Println()
	fmt.Printf("%s %d, skipped %d, failed %d\n", verb, len(result.Rekeyed), len(result.Skipped), len(result.Failed))
}
