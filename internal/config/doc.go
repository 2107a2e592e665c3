// Package config loads, normalizes, and validates matport's TOML
// configuration. Load returns a fully expanded Config; callers never consult
// the file or environment directly.
package config
