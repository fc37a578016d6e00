// Package editor provides the terminal implementations of the session
// boundary interfaces: TempFileHost edits the document by round-tripping
// it through a private temp file in the user's $EDITOR, and
// TerminalPrompter handles identity selection and passphrase entry on
// the TTY.
package editor
