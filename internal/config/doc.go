// Package config loads evload settings from built-in profiles, an optional
// JSON or YAML file and command-line flags, in that order of precedence.
package config
