package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Upload contains defaults for the posting pipeline. Command-line flags
// override these per run.
type Upload struct {
	Redundancy     int    `toml:"redundancy"`
	Backend        string `toml:"backend"`
	PostSize       string `toml:"post_size"`
	Group          string `toml:"group"`
	ConflictPolicy string `toml:"on_conflict"`
	OutputTemplate string `toml:"output_template"`
	EnvFile        string `toml:"env_file"`
	KeepFiles      bool   `toml:"keep_files"`
}

// NFO contains configuration for the descriptor artifact.
type NFO struct {
	Enabled bool   `toml:"enabled"`
	Banner  string `toml:"banner"`
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	Rar     string `toml:"rar"`
	ParPar  string `toml:"parpar"`
	Par2    string `toml:"par2"`
	Nyuu    string `toml:"nyuu"`
	FFprobe string `toml:"ffprobe"`
}

// History contains configuration for the run journal.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for upapasta.
//
// Sections by subsystem:
//   - Paths: log and lock directory
//   - Upload: pipeline defaults (redundancy, backend, post size, conflict policy)
//   - NFO: descriptor artifact settings
//   - Tools: external binary names
//   - History: run journal toggle
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Upload  Upload  `toml:"upload"`
	NFO     NFO     `toml:"nfo"`
	Tools   Tools   `toml:"tools"`
	History History `toml:"history"`
	Logging Logging `toml:"logging"`

	postSizeBytes uint64
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/upapasta/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("upapasta.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir returns the directory holding per-source run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.LogDir, "locks")
}

// PostSizeBytes returns the parsed target post size.
func (c *Config) PostSizeBytes() uint64 {
	return c.postSizeBytes
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
