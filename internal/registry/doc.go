// Package registry answers one question: which public keys should a
// given secret be encrypted to?
//
// The answer lives in a Nix rules file (secrets.nix by convention) that
// maps secret paths to publicKeys lists. Locate finds the governing rules
// file by upward search from the secret, RecipientsFor evaluates it with
// nix-instantiate, and ValidateRecipient rejects any declared key that is
// neither an age X25519 recipient nor an SSH public key.
//
// The evaluator binary is resolved from PATH first, then from the
// Determinate Nix profile directory, which installs outside PATH.
package registry
