package testsupport

import (
	"path/filepath"
	"testing"

	"matport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "libraries")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Import.Workers = 2
	cfg.Matcher.Workers = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithExtractorBinary overrides the external tool binary on the test config.
func WithExtractorBinary(binary string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Extractor.Binary = binary
	}
}

// WithFastMode toggles the matcher prefilter on the test config.
func WithFastMode(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Matcher.FastMode = enabled
	}
}
