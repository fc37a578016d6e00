package errors

import "errors"

// Rules errors indicate the secret is not governed by a usable rules file.
var (
	// ErrNoRulesFile indicates no secrets.nix was found in any ancestor
	// directory of the secret path.
	ErrNoRulesFile = errors.New("no rules file found for secret")

	// ErrRulesEval indicates the Nix evaluation of the rules file failed:
	// the secret is not declared, the rules file is malformed, or the
	// evaluator itself is missing.
	ErrRulesEval = errors.New("rules evaluation failed")

	// ErrNoRecipients indicates the rules file declares an empty recipient
	// list for the secret. Encrypting to nobody produces an unrecoverable
	// file, so this is always fatal.
	ErrNoRecipients = errors.New("secret has no declared recipients")

	// ErrBadRecipient indicates a declared recipient is neither a valid age
	// public key nor a valid SSH public key.
	ErrBadRecipient = errors.New("invalid recipient public key")
)

// Identity errors indicate problems with local private keys.
var (
	// ErrNoIdentities indicates no configured identity file exists on disk.
	ErrNoIdentities = errors.New("no usable identity found")

	// ErrIdentityUnlock indicates a protected identity could not be
	// unlocked: the temp copy failed or the passphrase was rejected.
	ErrIdentityUnlock = errors.New("failed to unlock identity")
)

// Transform errors indicate failures of the encryption tool.
var (
	// ErrDecryptFailed indicates the encryption tool exited non-zero while
	// decrypting with every identity it was given.
	ErrDecryptFailed = errors.New("failed to decrypt secret")

	// ErrEncryptFailed indicates the encryption tool exited non-zero while
	// encrypting. The on-disk secret is left untouched.
	ErrEncryptFailed = errors.New("failed to encrypt secret")
)

// Session errors indicate problems with the editing flow itself.
var (
	// ErrCanceled indicates the user abandoned an interactive prompt.
	ErrCanceled = errors.New("canceled by user")

	// ErrSessionState indicates an operation was attempted in a session
	// state that does not permit it, like saving a closed session.
	ErrSessionState = errors.New("operation not valid in current session state")
)
