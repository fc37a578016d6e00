package session

import "fmt"

// State is the lifecycle position of a secret session. Transitions are
// driven only by Open, MarkDirty, Save, and Close; nothing else mutates
// session state.
type State int

const (
	// StateClosed is the initial and final state. No plaintext is held.
	StateClosed State = iota

	// StateOpening covers recipient resolution and decryption.
	StateOpening

	// StateDecryptedClean means the document matches the last decrypted or
	// saved content.
	StateDecryptedClean

	// StateDecryptedDirty means the host has reported edits since the last
	// clean point.
	StateDecryptedDirty

	// StateSaving covers encryption and the post-save reload.
	StateSaving

	// StateFailed means opening or reloading failed. The session cannot be
	// used further; the on-disk secret is whatever the last completed save
	// left there.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateDecryptedClean:
		return "decrypted-clean"
	case StateDecryptedDirty:
		return "decrypted-dirty"
	case StateSaving:
		return "saving"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
