package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransmission()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchedDir, err = expandPath(strings.TrimSpace(c.Paths.WatchedDir)); err != nil {
		return fmt.Errorf("paths.watched_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QuarantineDir) == "" {
		c.Paths.QuarantineDir = defaultQuarantineDir
	}
	if c.Paths.QuarantineDir, err = expandPath(c.Paths.QuarantineDir); err != nil {
		return fmt.Errorf("paths.quarantine_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransmission() {
	c.Transmission.Host = strings.TrimSpace(c.Transmission.Host)
	if c.Transmission.Host == "" {
		c.Transmission.Host = defaultTransmissionHost
	}
	if c.Transmission.Port == 0 {
		c.Transmission.Port = defaultTransmissionPort
	}
	c.Transmission.RPCPath = strings.TrimSpace(c.Transmission.RPCPath)
	if c.Transmission.RPCPath == "" {
		c.Transmission.RPCPath = defaultRPCPath
	}
	if !strings.HasPrefix(c.Transmission.RPCPath, "/") {
		c.Transmission.RPCPath = "/" + c.Transmission.RPCPath
	}
	if c.Transmission.Username == "" {
		if value, ok := os.LookupEnv("TRANSMISSION_USERNAME"); ok {
			c.Transmission.Username = strings.TrimSpace(value)
		}
	}
	if c.Transmission.Password == "" {
		if value, ok := os.LookupEnv("TRANSMISSION_PASSWORD"); ok {
			c.Transmission.Password = value
		}
	}
	c.Transmission.DownloadDir = strings.TrimSpace(c.Transmission.DownloadDir)
	if c.Transmission.RequestTimeout <= 0 {
		c.Transmission.RequestTimeout = defaultRequestTimeout
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
