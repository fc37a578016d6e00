package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/registry"
	"github.com/PolarWolf314/agedit/internal/ui"

	"github.com/spf13/cobra"
)

var recipientsCmd = &cobra.Command{
	Use:   "recipients <file>",
	Short: "List the public keys a secret is encrypted for",
	Long: `Resolves the secret against its rules file and prints the declared
recipient public keys, one per line. This is what a save through
agedit edit would encrypt for.

Examples:
  agedit recipients secrets/api-key.age`,
	Args: cobra.ExactArgs(1),
	RunE: runRecipients,
}

func runRecipients(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting recipients command")
	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	secretPath, err := filepath.Abs(args[0])
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to resolve path %s: %v", args[0], err)
	}

	keys, err := registry.RecipientsFor(ctx, cfg, secretPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatRecipientsError(err, args[0], cfg.RulesName))
		return err
	}

	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

// formatRecipientsError formats a recipient resolution failure for display
// to the user.
func formatRecipientsError(err error, path, rulesName string) string {
	switch {
	case errors.Is(err, aerrors.ErrNoRulesFile):
		return ui.Error.Sprint("✗") + " No rules file governs " + ui.Path.Sprint(path) + "\n" +
			ui.Info.Sprint("→") + " Create a " + ui.Code.Sprint(rulesName) + " declaring the secret and its recipients"

	case errors.Is(err, aerrors.ErrRulesEval):
		return ui.Error.Sprint("✗") + " Failed to evaluate the rules file\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, aerrors.ErrNoRecipients):
		return ui.Error.Sprint("✗") + " The rules file declares no recipients for " + ui.Path.Sprint(path)

	case errors.Is(err, aerrors.ErrBadRecipient):
		return ui.Error.Sprint("✗") + " The rules file declares an invalid recipient\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	default:
		return ui.Error.Sprint("✗") + " Failed to resolve recipients for " + ui.Path.Sprint(path) + "\n\n" +
			ui.Error.Sprint("Error: ") + err.Error()
	}
}
