// Package utils provides shared utility functions for the agedit application.
//
// This package contains general-purpose helpers used across multiple packages.
// Functions are organized into logical groups:
//
// # Filesystem Utilities
//
// Functions for working with paths and transient files:
//   - ExpandPath: expands ~ and environment variables to an absolute path
//   - FileExists: reports whether a path is an existing regular file
//   - PrivateTempDir: creates a 0700 directory for sensitive temp files
//   - ShredFile: zero-overwrites and removes a sensitive file
//   - FormatPaths: formats file paths for human-readable output
//
// # Terminal Utilities
//
// Functions for terminal detection and interaction:
//   - ReadPassphrase: hidden passphrase input from stdin
//   - ReadPassphraseFromTTY: hidden passphrase input from /dev/tty
//   - ReadLine: visible one-line input with a prompt
//   - IsTerminal, IsTTYAvailable: terminal detection
package utils
