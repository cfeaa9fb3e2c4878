package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"torrdrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The watched directory is created so the config validates.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchedDir = filepath.Join(base, "inbox")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.QuarantineDir = filepath.Join(base, "quarantine")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := os.MkdirAll(cfg.Paths.WatchedDir, 0o755); err != nil {
		t.Fatalf("mkdir watched dir: %v", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxAttempts overrides the retry bound on the test config.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxAttempts = n
	}
}

// WithDownloadDir sets the remote download directory on the test config.
func WithDownloadDir(dir string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transmission.DownloadDir = dir
	}
}
