package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/PolarWolf314/agedit/internal/config"
	"github.com/PolarWolf314/agedit/internal/ui"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be called to clean up.
//
// spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	err := s.Color("cyan")
	if err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("%s", message)
	}

	var cleaned bool
	cleanup := func() {
		// Commands that exit early call cleanup themselves; the deferred
		// call then has nothing left to do.
		if cleaned {
			return
		}
		cleaned = true

		// Restore log output first.
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
		}

		// Ensure final message ends with a newline.
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		// Stop the spinner first to clear the spinner line.
		if !verbose && !debug {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// identitySources lists the configured identity entries for display in
// error messages.
func identitySources(cfg *config.Config) []string {
	var sources []string
	for _, entry := range cfg.Identities {
		switch {
		case entry.Path != "":
			sources = append(sources, entry.Path)
		case entry.Command != "":
			sources = append(sources, entry.Command)
		default:
			sources = append(sources, "registered identity function")
		}
	}
	return sources
}

// loadConfig reads the user configuration and runs the setup command, so
// every command sees the environment the hook prepares (SSH agent sockets,
// PATH additions, and so on). A failing hook is warned about, not fatal.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applied, err := cfg.RunSetupHook(ctx)
	if err != nil {
		Logger.WarnfAlways("%v", err)
	}
	if len(applied) > 0 {
		Logger.Debugf("setup command applied %d environment variable(s)", len(applied))
	}
	return cfg, nil
}
