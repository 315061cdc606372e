// Package config loads the client configuration: defaults, then the YAML
// file, then environment overrides. Command-line flags are applied last by
// the binary.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tuimessenger/internal/netsec"
)

const (
	DefaultRelayURL    = "ws://127.0.0.1:8080"
	DefaultDialTimeout = 10 * time.Second

	EnvURL      = "TUIMESSENGER_URL"
	EnvUsername = "TUIMESSENGER_USERNAME"
	EnvLog      = "TUIMESSENGER_LOG"
)

type Config struct {
	RelayURL string `yaml:"relay_url"`
	Username string `yaml:"username"`
	// Login starts the terminal UI on the login screen instead of Main.
	Login       bool `yaml:"login"`
	InsecureTLS bool `yaml:"insecure_tls"`
	// TLSFingerprint pins a self-signed relay certificate; the relay logs
	// it at startup.
	TLSFingerprint string        `yaml:"tls_fingerprint"`
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		RelayURL:    DefaultRelayURL,
		LogLevel:    "info",
		DialTimeout: DefaultDialTimeout,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/tuimessenger/config.yaml, falling
// back to ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		if home == "" {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tuimessenger", "config.yaml")
}

// Load reads the default config file if it exists.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if path := DefaultPath(); path != "" {
		if err := loadAndMerge(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath reads path, which must exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Keys missing from the file keep their current values.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		cfg.RelayURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUsername)); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLog)); v != "" {
		cfg.LogFile = v
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return fmt.Errorf("invalid relay_url %q: %w", c.RelayURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid relay_url %q (scheme must be ws or wss)", c.RelayURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid relay_url %q (missing host)", c.RelayURL)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("invalid dial_timeout %s (must not be negative)", c.DialTimeout)
	}
	if c.TLSFingerprint != "" {
		if _, err := netsec.ParseFingerprint(c.TLSFingerprint); err != nil {
			return fmt.Errorf("invalid tls_fingerprint: %w", err)
		}
	}
	if strings.ContainsAny(c.Username, " \t\r\n") {
		return fmt.Errorf("invalid username %q (must not contain whitespace)", c.Username)
	}
	return nil
}
