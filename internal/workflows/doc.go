// Package workflows provides high-level orchestration for agedit commands.
//
// Workflows coordinate multiple operations across packages (registry,
// session, age, audit) to implement complete user-facing features. Each
// workflow handles a single command's business logic, independent of CLI
// concerns like flag parsing, spinners, and output formatting.
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Each batch command has a corresponding workflow:
//
//   - Rekey: Re-encrypts secrets to their currently declared recipients
//   - Status: Reports presence and recipient counts for declared secrets
//   - Doctor: Runs health checks on the tools and keys agedit depends on
//   - Log: Reads and filters the audit trail
//
// The edit and view commands work on one secret at a time and drive the
// session package directly instead of going through a workflow.
//
// All workflows follow the same pattern: an Options struct for inputs and
// a Result struct for outcomes, with the configuration passed explicitly
// so nothing in this package mutates global state.
package workflows
