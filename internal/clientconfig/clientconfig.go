// Package clientconfig reads and writes the terminal client's JSONC config file.
package clientconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is used until login sets another backend.
	DefaultAPIURL = "http://localhost:8080"
	// DefaultPollInterval is the background refetch period of the chat command.
	DefaultPollInterval = 30 * time.Second
)

// Config is the client configuration. The file may contain comments and trailing commas.
type Config struct {
	APIURL       string `json:"api_url"`
	UID          string `json:"uid,omitempty"`
	Token        string `json:"token,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	RawFallback  bool   `json:"raw_fallback,omitempty"`
}

// DefaultPath returns ~/.config/overlax/config.json or the platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "overlax", "config.json"), nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{APIURL: DefaultAPIURL}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically with owner-only permissions.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Validate checks the optional fields that must parse.
func (c *Config) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	if c.PollInterval != "" {
		d, err := time.ParseDuration(c.PollInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid poll_interval %q", c.PollInterval)
		}
	}
	return nil
}

// Authenticated reports whether a uid and token are stored.
func (c *Config) Authenticated() bool {
	return c.UID != "" && c.Token != ""
}

// TokenSource returns the stored ID token, or nil when signed out.
func (c *Config) TokenSource() oauth2.TokenSource {
	if c.Token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token, TokenType: "Bearer"})
}

// Location returns the configured zone, or the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.Local
}

// Poll returns the poll interval, or DefaultPollInterval.
func (c *Config) Poll() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return DefaultPollInterval
}
