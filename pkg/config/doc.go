// Package config loads Roster server configuration from built-in
// defaults, an optional YAML file, and ROSTER_* environment variables,
// in that order of precedence (environment wins).
//
// Set ROSTER_CONFIG_FILE to load a YAML file; NewWatcher reloads it on
// change without restarting the server.
package config
