package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/ui"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	// RootCmd is the agedit command tree.
	RootCmd = &cobra.Command{
		Use:   "agedit",
		Short: "Edit age-encrypted files in place, without plaintext ever touching your repository",
		Long: `agedit decrypts age-encrypted secrets into your editor and re-encrypts
them on save, driven by the same secrets.nix rules file agenix uses.

Recipients come from the rules file, identities are your SSH private
keys, and passphrase-protected keys are unlocked into a throwaway copy
that is shredded before any plaintext appears.

Run 'agedit help <command>' for more details on a specific command.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println()
			banner := figure.NewColorFigure("agedit", "alligator2", "green", true)
			banner.Print()
			fmt.Println()
			fmt.Println("Run " + ui.Code.Sprint("agedit --help") + " to see available commands.")
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing agedit with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.AddCommand(editCmd)
	RootCmd.AddCommand(viewCmd)
	RootCmd.AddCommand(recipientsCmd)
	RootCmd.AddCommand(rekeyCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(logCmd)
}

// Helper functions for testing

// GetRootCmd returns the RootCmd for testing.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetEditCommandState()
	resetViewCommandState()
	resetRekeyCommandState()
	resetStatusCommandState()
	resetDoctorCommandState()
	resetLogCommandState()
	resetFlagState()
}

// resetFlagState resets Cobra flag state to prevent pollution between tests.
func resetFlagState() {
	RootCmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	for _, sub := range RootCmd.Commands() {
		sub.Flags().VisitAll(func(flag *pflag.Flag) {
			flag.Changed = false
		})
	}
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
