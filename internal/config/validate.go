package config

import (
	"errors"
	"fmt"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path must be set")
	}
	if c.Store.BusyTimeoutMS < 0 {
		return fmt.Errorf("store.busy_timeout_ms must be non-negative, got %d", c.Store.BusyTimeoutMS)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use auto, console, or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Telemetry.Enabled && c.Telemetry.APIKey == "" {
		return errors.New("telemetry.api_key is required when telemetry is enabled")
	}
	return nil
}
