// Package errors provides typed error values for the agedit application.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. This makes
// error handling more robust and refactoring-safe.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Rules errors: the secret's governing rules file is missing, does not
//     declare the secret, or declares bad keys (ErrNoRulesFile, ErrRulesEval,
//     ErrNoRecipients, ErrBadRecipient)
//   - Identity errors: local private keys are missing or locked
//     (ErrNoIdentities, ErrIdentityUnlock)
//   - Transform errors: the encryption tool failed (ErrDecryptFailed,
//     ErrEncryptFailed)
//   - Session errors: interactive flow problems (ErrCanceled, ErrSessionState)
//
// # Usage
//
// Return errors from internal packages, attaching the raw tool diagnostic:
//
//	return fmt.Errorf("%w: %s", errors.ErrDecryptFailed, stderr)
//
// Handle errors in the CLI layer:
//
//	err := sess.Open(ctx)
//	if errors.Is(err, agerrors.ErrNoRulesFile) {
//	    // Show a hint about creating secrets.nix
//	}
//
// None of these conditions are retried automatically; they are reported to
// the interactive user, who decides what to do next.
package errors
