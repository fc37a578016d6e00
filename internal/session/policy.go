package session

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/agedit/internal/age"
	"github.com/PolarWolf314/agedit/internal/config"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/identity"
	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// DecryptForRead decrypts the secret at path using the configured
// identities. It implements the selection policy shared by sessions, the
// view command, and rekey:
//
//   - Every existing candidate is probed once. If none is protected, a
//     single batched decrypt runs with the full list and the user is
//     never prompted.
//   - If at least one candidate is protected, the prompter picks exactly
//     one identity (free-form paths allowed). Only when that one is
//     protected is a passphrase read and an ephemeral unlocked copy made.
//
// Any ephemeral copy is destroyed before the plaintext is returned, so
// unlocked key material and plaintext never coexist past the decrypt
// call. The passphrase buffer is zeroed after use.
func DecryptForRead(ctx context.Context, cfg *config.Config, path string, prompter Prompter, log logger.Logger) ([]byte, error) {
	candidates := identity.Candidates(ctx, cfg.Identities, log)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: none of the configured identity files exist", aerrors.ErrNoIdentities)
	}

	protected := make(map[string]bool, len(candidates))
	anyProtected := false
	for _, candidate := range candidates {
		isProtected, err := identity.IsProtected(ctx, cfg.KeytoolProgram, candidate)
		if err != nil {
			return nil, err
		}
		protected[candidate] = isProtected
		anyProtected = anyProtected || isProtected
	}

	if !anyProtected {
		log.Debugf("decrypting %s with %d unprotected identities", path, len(candidates))
		return age.Decrypt(ctx, cfg, path, candidates)
	}

	chosen, err := prompter.ChooseIdentity(candidates)
	if err != nil {
		return nil, err
	}
	chosen, err = utils.ExpandPath(chosen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aerrors.ErrNoIdentities, err)
	}
	if !utils.FileExists(chosen) {
		return nil, fmt.Errorf("%w: %s does not exist", aerrors.ErrNoIdentities, chosen)
	}

	isProtected, probed := protected[chosen]
	if !probed {
		if isProtected, err = identity.IsProtected(ctx, cfg.KeytoolProgram, chosen); err != nil {
			return nil, err
		}
	}
	if !isProtected {
		log.Debugf("decrypting %s with %s", path, chosen)
		return age.Decrypt(ctx, cfg, path, []string{chosen})
	}

	passphrase, err := prompter.Passphrase(chosen)
	if err != nil {
		return nil, err
	}
	ephemeral, err := identity.NewEphemeral(ctx, cfg.KeytoolProgram, chosen, passphrase)
	zeroBytes(passphrase)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ephemeral.Destroy() }()

	log.Debugf("decrypting %s with unlocked copy of %s", path, chosen)
	plaintext, err := age.Decrypt(ctx, cfg, path, []string{ephemeral.TempPath})
	if err != nil {
		return nil, err
	}
	if destroyErr := ephemeral.Destroy(); destroyErr != nil {
		log.Warnf("failed to clean up unlocked identity: %v", destroyErr)
	}
	return plaintext, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
