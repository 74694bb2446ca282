package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"upapasta/internal/config"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "upapasta", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Upload.Redundancy != 15 {
		t.Fatalf("unexpected redundancy default: %d", cfg.Upload.Redundancy)
	}
	if cfg.Upload.Backend != "parpar" {
		t.Fatalf("unexpected backend default: %q", cfg.Upload.Backend)
	}
	if cfg.Upload.ConflictPolicy != "rename" {
		t.Fatalf("unexpected conflict policy default: %q", cfg.Upload.ConflictPolicy)
	}
	if cfg.PostSizeBytes() != 20*1000*1000 {
		t.Fatalf("unexpected post size bytes: %d", cfg.PostSizeBytes())
	}
	if !cfg.NFO.Enabled {
		t.Fatal("expected nfo enabled by default")
	}
	if cfg.Tools.Nyuu != "nyuu" {
		t.Fatalf("unexpected nyuu binary: %q", cfg.Tools.Nyuu)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[upload]
redundancy = 20
backend = "PAR2"
post_size = "10M"
on_conflict = "Fail"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Upload.Redundancy != 20 {
		t.Fatalf("unexpected redundancy: %d", cfg.Upload.Redundancy)
	}
	if cfg.Upload.Backend != "par2" {
		t.Fatalf("expected lowercased backend, got %q", cfg.Upload.Backend)
	}
	if cfg.Upload.ConflictPolicy != "fail" {
		t.Fatalf("expected lowercased policy, got %q", cfg.Upload.ConflictPolicy)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate string
	}{
		{"redundancy zero", "[upload]\nredundancy = 0\n"},
		{"redundancy over 100", "[upload]\nredundancy = 150\n"},
		{"unknown backend", "[upload]\nbackend = \"rsbep\"\n"},
		{"unknown policy", "[upload]\non_conflict = \"ask\"\n"},
		{"bad post size", "[upload]\npost_size = \"twenty\"\n"},
		{"bad log format", "[logging]\nformat = \"xml\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if err := os.WriteFile(path, []byte(tc.mutate), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}

func TestEnsureDirectoriesCreatesLockDir(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	if _, err := os.Stat(cfg.LockDir()); err != nil {
		t.Fatalf("lock dir missing: %v", err)
	}
}
