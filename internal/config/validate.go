package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Paths.PacksDir) == "" {
		errs = append(errs, errors.New("paths.packs_dir must be set"))
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		errs = append(errs, errors.New("paths.log_dir must be set"))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
