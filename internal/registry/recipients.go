package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"

	"github.com/PolarWolf314/agedit/internal/config"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
)

// RecipientsFor returns the public keys the rules file declares for
// secretPath, in declaration order. The rules file is located by upward
// search, then evaluated as
//
//	(let rules = import "<rules-file>"; in rules."<rule-key>".publicKeys)
//
// Any evaluation problem (missing declaration, malformed rules file,
// missing evaluator) is fatal: editing a secret whose recipient set is
// unknown risks saving it encrypted to the wrong keys. Every returned key
// is validated before any of them reaches the encryption tool.
func RecipientsFor(ctx context.Context, cfg *config.Config, secretPath string) ([]string, error) {
	loc, err := Locate(secretPath, cfg.RulesName)
	if err != nil {
		return nil, err
	}
	key, err := RuleKey(loc, secretPath)
	if err != nil {
		return nil, err
	}

	expr := fmt.Sprintf("(let rules = import %s; in rules.%s.publicKeys)", nixString(loc.File), nixString(key))
	var keys []string
	if err := evalJSON(ctx, cfg.NixProgram, expr, &keys); err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s declares no publicKeys for %q", aerrors.ErrNoRecipients, loc.File, key)
	}
	for _, recipient := range keys {
		if err := ValidateRecipient(recipient); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Names lists the rule keys a rules file declares, in the evaluator's
// sorted attrNames order. Used by rekey and status to enumerate secrets
// without parsing Nix themselves.
func Names(ctx context.Context, cfg *config.Config, rulesFile string) ([]string, error) {
	abs, err := filepath.Abs(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rulesFile, err)
	}

	expr := fmt.Sprintf("builtins.attrNames (import %s)", nixString(abs))
	var names []string
	if err := evalJSON(ctx, cfg.NixProgram, expr, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ValidateRecipient checks that key parses as one of the two forms a
// rules file may declare: a native age X25519 recipient or an SSH public
// key in authorized_keys format.
func ValidateRecipient(key string) error {
	if strings.HasPrefix(key, "age1") {
		if _, err := age.ParseX25519Recipient(key); err != nil {
			return fmt.Errorf("%w: %q: %v", aerrors.ErrBadRecipient, key, err)
		}
		return nil
	}
	if _, err := agessh.ParseRecipient(key); err != nil {
		return fmt.Errorf("%w: %q: %v", aerrors.ErrBadRecipient, key, err)
	}
	return nil
}
