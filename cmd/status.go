package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/ui"
	"github.com/PolarWolf314/agedit/internal/workflows"

	"github.com/spf13/cobra"
)

var statusJSONOutput bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSONOutput, "json", false, "output in JSON format")
}

func resetStatusCommandState() {
	statusJSONOutput = false
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every secret the rules file governs",
	Long: `Walks the project under the nearest rules file and reports each secret.

Each secret can have one of four statuses:
  - ok:         declared in the rules and present on disk
  - missing:    declared in the rules but no encrypted file exists yet
  - undeclared: an .age file the rules do not mention
  - bad-rule:   declared, but its rules entry cannot be resolved

Use --json for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting status command")
		ctx := context.Background()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to load config: %v", err)
		}

		result, err := workflows.Status(ctx, cfg, workflows.StatusOptions{})
		if err != nil {
			if errors.Is(err, aerrors.ErrNoRulesFile) {
				if statusJSONOutput {
					fmt.Println(`{"error": "no rules file found"}`)
					return nil
				}
				fmt.Println(ui.Error.Sprint("✗") + " No rules file found")
				fmt.Println(ui.Info.Sprint("→") + " Run from inside a project with a " + ui.Code.Sprint(cfg.RulesName))
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to determine status: %v", err)
		}

		if statusJSONOutput {
			return outputStatusJSON(result)
		}

		printStatusTable(result, cfg.RulesName)
		return nil
	},
}

// outputStatusJSON outputs the result as JSON.
func outputStatusJSON(result *workflows.StatusResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// printStatusTable prints a formatted table of secret statuses.
func printStatusTable(result *workflows.StatusResult, rulesName string) {
	fmt.Printf("Rules file: %s\n", ui.Highlight.Sprint(result.RulesFile))
	fmt.Println()

	if len(result.Files) == 0 {
		fmt.Println(ui.Success.Sprint("✓") + " No secrets declared.")
		return
	}

	// Calculate column width for file path.
	pathWidth := 30
	for _, file := range result.Files {
		if len(file.Path) > pathWidth {
			pathWidth = len(file.Path)
		}
	}
	// Cap at reasonable width.
	if pathWidth > 60 {
		pathWidth = 60
	}

	fmt.Printf("  %-*s  %s\n", pathWidth, "SECRET", "STATUS")

	for _, file := range result.Files {
		displayPath := file.Path
		if len(displayPath) > pathWidth {
			displayPath = "..." + displayPath[len(displayPath)-pathWidth+3:]
		}

		var statusStr string
		switch file.Status {
		case workflows.StatusOK:
			statusStr = ui.Success.Sprint("✓") + fmt.Sprintf(" declared (%d recipient(s))", file.Recipients)
		case workflows.StatusMissing:
			statusStr = ui.Warning.Sprint("⚠") + " declared, file missing"
		case workflows.StatusUndeclared:
			statusStr = ui.Error.Sprint("✗") + " not declared in rules"
		case workflows.StatusBadRule:
			statusStr = ui.Error.Sprint("✗") + " " + file.Detail
		}

		fmt.Printf("  %-*s  %s\n", pathWidth, displayPath, statusStr)
	}

	fmt.Println()
	fmt.Println("Summary:")

	if result.Summary.OK > 0 {
		fmt.Printf("  %d secret(s) declared and present\n", result.Summary.OK)
	}
	if result.Summary.Missing > 0 {
		fmt.Printf("  %d secret(s) declared but missing (run '%s' to create)\n",
			result.Summary.Missing, ui.Code.Sprint("agedit edit <file>"))
	}
	if result.Summary.Undeclared > 0 {
		fmt.Printf("  %d file(s) not declared in the rules (add them to %s or remove them)\n",
			result.Summary.Undeclared, ui.Code.Sprint(rulesName))
	}
	if result.Summary.BadRules > 0 {
		fmt.Printf("  %d secret(s) with rules entries that cannot be resolved\n", result.Summary.BadRules)
	}
}
