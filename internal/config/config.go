package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultServerURL is the marketplace API origin used when the config
	// file does not override it.
	DefaultServerURL = "https://api.feiralink.com"

	// DefaultTypingIdle is how long the composer may stay idle before the
	// engine transmits stop_typing.
	DefaultTypingIdle = time.Second
)

// Config represents the global ~/.feiralink/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	ServerURL      string `toml:"server_url"`
	TypingIdleMs   int    `toml:"typing_idle_ms"`
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers fall back to defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Server returns the configured server origin or the default.
func (c *Config) Server() string {
	if c == nil || c.ServerURL == "" {
		return DefaultServerURL
	}
	return c.ServerURL
}

// TypingIdle returns the configured typing idle window or the default.
func (c *Config) TypingIdle() time.Duration {
	if c == nil || c.TypingIdleMs <= 0 {
		return DefaultTypingIdle
	}
	return time.Duration(c.TypingIdleMs) * time.Millisecond
}
