package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Redundancy < 1 || c.Upload.Redundancy > 100 {
		return fmt.Errorf("upload.redundancy must be between 1 and 100, got %d", c.Upload.Redundancy)
	}
	switch c.Upload.Backend {
	case "parpar", "par2":
	default:
		return fmt.Errorf("upload.backend must be %q or %q, got %q", "parpar", "par2", c.Upload.Backend)
	}
	switch c.Upload.ConflictPolicy {
	case "rename", "overwrite", "fail":
	default:
		return fmt.Errorf("upload.on_conflict must be rename, overwrite, or fail, got %q", c.Upload.ConflictPolicy)
	}
	if c.postSizeBytes == 0 {
		return errors.New("upload.post_size must be greater than zero")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
