// Package config loads, normalizes, and validates the TOML configuration
// shared by the voicebox daemon and CLI.
package config
