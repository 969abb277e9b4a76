package testsupport

import (
	"path/filepath"
	"testing"

	"setlist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithDebounce overrides the watcher debounce interval on the test config.
func WithDebounce(millis int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Watcher.DebounceMillis = millis
	}
}

// WithFuzzyCutoff overrides the correlator fuzzy cutoff on the test config.
func WithFuzzyCutoff(cutoff float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Correlator.FuzzyCutoff = cutoff
	}
}
