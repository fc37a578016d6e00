package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/agedit/internal/age"
	"github.com/PolarWolf314/agedit/internal/config"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/registry"
	"github.com/PolarWolf314/agedit/internal/session"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// RekeyOptions configures the rekey workflow.
type RekeyOptions struct {
	// Paths lists the secrets to re-encrypt. When empty, every secret the
	// rules file declares is rekeyed.
	Paths []string

	// Dir is the directory the rules file is located from when Paths is
	// empty. Defaults to the current working directory.
	Dir string

	// DryRun resolves recipients for each secret without rewriting any
	// file.
	DryRun bool

	// Prompter selects identities and collects passphrases when a
	// protected key is needed to decrypt a secret.
	Prompter session.Prompter

	// Log receives progress output.
	Log logger.Logger
}

// RekeyedSecret describes one re-encrypted secret.
type RekeyedSecret struct {
	// Path is the absolute path of the secret.
	Path string

	// Recipients is the number of keys it was encrypted to.
	Recipients int
}

// RekeyFailure describes one secret that could not be re-encrypted.
type RekeyFailure struct {
	Path   string
	Reason string
}

// RekeyResult contains the outcome of a rekey operation.
type RekeyResult struct {
	// RulesFile is the rules file the secrets were enumerated from.
	// Empty when explicit paths were given, because those may be
	// governed by different rules files.
	RulesFile string

	// Rekeyed lists the secrets that were re-encrypted, in the order
	// they were processed.
	Rekeyed []RekeyedSecret

	// Skipped lists declared secrets with no file on disk.
	Skipped []string

	// Failed lists the secrets that could not be re-encrypted.
	Failed []RekeyFailure

	// DryRun reports whether files were actually rewritten.
	DryRun bool
}

// Rekey re-encrypts secrets to the recipients their rules file currently
// declares. It is the recovery path after a rules change: editing a secret
// picks up new recipients on save, but secrets nobody edits would keep
// their stale recipient sets forever.
//
// Each secret is decrypted with the configured identities and encrypted
// again in place. Per-secret problems (unresolvable rules, decryption
// failures) are recorded in the result and do not stop the run. A
// canceled prompt aborts the run; secrets already rekeyed stay rekeyed
// and are listed in the partial result.
func Rekey(ctx context.Context, cfg *config.Config, opts RekeyOptions) (*RekeyResult, error) {
	result := &RekeyResult{DryRun: opts.DryRun}

	paths := opts.Paths
	if len(paths) == 0 {
		dir := opts.Dir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to determine working directory: %w", err)
			}
			dir = wd
		}

		loc, err := registry.LocateFrom(dir, cfg.RulesName)
		if err != nil {
			return nil, err
		}
		result.RulesFile = loc.File

		names, err := registry.Names(ctx, cfg, loc.File)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			paths = append(paths, filepath.Join(loc.Dir, filepath.FromSlash(name)))
		}
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			result.Failed = append(result.Failed, RekeyFailure{Path: path, Reason: err.Error()})
			continue
		}

		if !utils.FileExists(abs) {
			opts.Log.WarnfAlways("skipping %s: file does not exist", abs)
			result.Skipped = append(result.Skipped, abs)
			continue
		}

		recipients, err := registry.RecipientsFor(ctx, cfg, abs)
		if err != nil {
			result.Failed = append(result.Failed, RekeyFailure{Path: abs, Reason: err.Error()})
			continue
		}

		if opts.DryRun {
			opts.Log.Infof("would rekey %s to %d recipient(s)", abs, len(recipients))
			result.Rekeyed = append(result.Rekeyed, RekeyedSecret{Path: abs, Recipients: len(recipients)})
			continue
		}

		plaintext, err := session.DecryptForRead(ctx, cfg, abs, opts.Prompter, opts.Log)
		if err != nil {
			if errors.Is(err, aerrors.ErrCanceled) {
				return result, fmt.Errorf("rekey interrupted: %w", err)
			}
			result.Failed = append(result.Failed, RekeyFailure{Path: abs, Reason: err.Error()})
			continue
		}

		if err := age.Encrypt(ctx, cfg, plaintext, recipients, abs); err != nil {
			result.Failed = append(result.Failed, RekeyFailure{Path: abs, Reason: err.Error()})
			continue
		}

		opts.Log.Infof("rekeyed %s to %d recipient(s)", abs, len(recipients))
		result.Rekeyed = append(result.Rekeyed, RekeyedSecret{Path: abs, Recipients: len(recipients)})
	}

	return result, nil
}
