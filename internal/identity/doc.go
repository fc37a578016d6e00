// Package identity discovers private keys for decryption and manages
// passphrase-protected ones.
//
// Candidates resolves the configured identity entries (literal paths,
// path-producing commands, or registered functions) to existing key files.
// IsProtected probes a key with the SSH keytool to learn whether it needs
// a passphrase. NewEphemeral produces a short-lived passphrase-free copy
// of a protected key in a private temp directory; the original file is
// never touched, and Destroy shreds the copy.
package identity
