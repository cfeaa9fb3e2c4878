package config

import (
	"errors"
	"fmt"
	"os"
)

// Validate ensures the configuration is usable. Fatal problems surface here,
// before the ingestion loop starts.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTransmission(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchedDir == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/torrdrop/config.toml"
		}
		return fmt.Errorf("paths.watched_dir is required. Edit %s (create with 'torrdrop config init')", defaultPath)
	}
	info, err := os.Stat(c.Paths.WatchedDir)
	if err != nil {
		return fmt.Errorf("paths.watched_dir %q: %w", c.Paths.WatchedDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.watched_dir %q is not a directory", c.Paths.WatchedDir)
	}
	if c.Paths.ArchiveDir == c.Paths.WatchedDir {
		return errors.New("paths.archive_dir must differ from paths.watched_dir")
	}
	if c.Paths.QuarantineDir == c.Paths.WatchedDir {
		return errors.New("paths.quarantine_dir must differ from paths.watched_dir")
	}
	return nil
}

func (c *Config) validateTransmission() error {
	if c.Transmission.Port <= 0 || c.Transmission.Port > 65535 {
		return fmt.Errorf("transmission.port %d is out of range", c.Transmission.Port)
	}
	if c.Transmission.Username == "" && c.Transmission.Password != "" {
		return errors.New("transmission.username must be set when transmission.password is set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	for name, value := range map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.stability_interval":   c.Workflow.StabilityInterval,
		"workflow.max_attempts":         c.Workflow.MaxAttempts,
		"transmission.request_timeout":  c.Transmission.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
