// Package audit keeps a JSON Lines trail of secret operations under the
// agedit state directory. Each CLI invocation gets a session UUID so the
// open/save pairs of one edit group together. Writing is best-effort and
// never fails the operation being recorded; the log command reads the
// trail back.
package audit
