// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"upapasta/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// WithHistoryDisabled turns the run journal off.
func WithHistoryDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.History.Enabled = false
	}
}

// WithBackend selects the parity backend.
func WithBackend(backend string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Upload.Backend = backend
	}
}

// WithNFODisabled turns descriptor generation off.
func WithNFODisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.NFO.Enabled = false
	}
}

// NewConfig produces a validated config whose directories live under a
// per-test temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf("[paths]\nlog_dir = %q\n", filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
