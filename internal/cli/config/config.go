package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// PathEnv overrides the config file location.
	PathEnv    = "HUDDLE_CONFIG"
	DefaultURL = "http://localhost:5001"

	appDir   = "huddle"
	fileName = "config.json"
)

// Config is the CLI session persisted between invocations.
type Config struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

func defaults() *Config {
	return &Config{ServerURL: DefaultURL}
}

// Path returns HUDDLE_CONFIG when set, otherwise huddle/config.json under the
// user config dir.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv(PathEnv)); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Load reads the session file. A missing file or unknown config dir yields
// the defaults.
func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return defaults(), nil
	}
	return LoadFrom(p)
}

func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultURL
	}
	return cfg, nil
}

// Save writes the session file readable by the owner only.
func Save(cfg *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// Clear forgets the session. Clearing twice is not an error.
func Clear() error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *Config) HasToken() bool {
	return c.Token != ""
}
