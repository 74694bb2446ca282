package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeUpload(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() error {
	c.Upload.Backend = strings.ToLower(strings.TrimSpace(c.Upload.Backend))
	if c.Upload.Backend == "" {
		c.Upload.Backend = defaultBackend
	}
	c.Upload.ConflictPolicy = strings.ToLower(strings.TrimSpace(c.Upload.ConflictPolicy))
	if c.Upload.ConflictPolicy == "" {
		c.Upload.ConflictPolicy = defaultConflictPolicy
	}
	c.Upload.PostSize = strings.TrimSpace(c.Upload.PostSize)
	if c.Upload.PostSize == "" {
		c.Upload.PostSize = defaultPostSize
	}
	size, err := humanize.ParseBytes(c.Upload.PostSize)
	if err != nil {
		return fmt.Errorf("upload.post_size: %w", err)
	}
	c.postSizeBytes = size

	if strings.TrimSpace(c.Upload.OutputTemplate) == "" {
		c.Upload.OutputTemplate = defaultOutputTemplate
	}
	if strings.TrimSpace(c.Upload.EnvFile) == "" {
		c.Upload.EnvFile = defaultEnvFile
	}
	return nil
}

func (c *Config) normalizeTools() {
	fallback := Default().Tools
	if strings.TrimSpace(c.Tools.Rar) == "" {
		c.Tools.Rar = fallback.Rar
	}
	if strings.TrimSpace(c.Tools.ParPar) == "" {
		c.Tools.ParPar = fallback.ParPar
	}
	if strings.TrimSpace(c.Tools.Par2) == "" {
		c.Tools.Par2 = fallback.Par2
	}
	if strings.TrimSpace(c.Tools.Nyuu) == "" {
		c.Tools.Nyuu = fallback.Nyuu
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		c.Tools.FFprobe = fallback.FFprobe
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
