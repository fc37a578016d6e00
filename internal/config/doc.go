// Package config loads and represents agedit's user configuration.
//
// Configuration lives in a single TOML file under the user config
// directory (for example ~/.config/agedit/config.toml):
//
//	age_program = "age"
//	rules_name = "secrets.nix"
//
//	[[identity]]
//	path = "~/.ssh/id_ed25519"
//
//	[[identity]]
//	command = "secret-tool lookup agedit keyfile"
//
// Load returns a fully populated Config whether or not the file exists;
// missing fields fall back to Default values. The resulting Config is
// treated as immutable for the life of the process.
package config
