package session

// HostToken is an opaque checkpoint handle. A session only carries it
// from Checkpoint to Restore; its meaning belongs entirely to the Host.
type HostToken any

// Host is the editing surface a session drives. Implementations range
// from a terminal temp-file editor to an in-memory document in tests.
// The session treats the host as the single source of truth for the
// document content between open and save.
type Host interface {
	// SetPlaintext replaces the document content, resets any edit history,
	// and marks the document unmodified.
	SetPlaintext(content []byte) error

	// Plaintext returns the current document content exactly as edited.
	Plaintext() ([]byte, error)

	// Checkpoint captures restorable view state (cursor, scroll position)
	// before a save-triggered reload.
	Checkpoint() (HostToken, error)

	// Restore re-applies view state captured by Checkpoint.
	Restore(token HostToken) error
}

// Prompter asks the user to pick and unlock identities during
// decryption. Implementations return ErrCanceled (internal/errors) when
// the user abandons a prompt.
type Prompter interface {
	// ChooseIdentity presents the candidate key paths and returns the
	// chosen one. The answer does not have to come from the list; a
	// free-form path is allowed.
	ChooseIdentity(candidates []string) (string, error)

	// Passphrase reads the passphrase for a protected identity.
	Passphrase(identityPath string) ([]byte, error)
}
