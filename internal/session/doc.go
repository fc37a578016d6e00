// Package session orchestrates the lifecycle of editing one encrypted
// secret: recipient resolution, identity selection, decryption into a
// Host document, dirty tracking, and the save-and-reload cycle.
//
// The session is deliberately ignorant of terminals and editors. It
// drives two small interfaces, Host (the document) and Prompter (the
// user), which makes the whole lifecycle testable with scripted fakes
// and reusable behind different front ends.
//
// A session passes through the states Closed, Opening, DecryptedClean,
// DecryptedDirty, Saving, and Failed. The recipient set is resolved once
// at open and reused for every save, so an edit session is unaffected by
// concurrent rules-file changes.
package session
