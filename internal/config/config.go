// Package config loads the hubwatch configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultEvents is the webhook event set provisioned when the config does not
// name one. These are the event families that carry a pull request number.
var DefaultEvents = []string{
	"pull_request",
	"pull_request_review",
	"pull_request_review_comment",
	"issue_comment",
	"check_run",
}

const (
	// DefaultMaxRetries bounds consecutive stream reconnect attempts.
	DefaultMaxRetries = 5
	// DefaultBaseDelaySeconds is the first reconnect backoff delay.
	DefaultBaseDelaySeconds = 1
	// DefaultMaxDelaySeconds caps the reconnect backoff delay.
	DefaultMaxDelaySeconds = 30
)

// Config is the top-level configuration, stored as JSON at
// ~/.config/hubwatch/config.json.
type Config struct {
	// Repo is the "owner/name" repository the daemon serves.
	Repo string `json:"repo,omitempty"`
	// Events are the webhook event names to provision. Empty means DefaultEvents.
	Events []string `json:"events,omitempty"`
	// Stream tunes the event-stream reconnect behavior.
	Stream StreamConfig `json:"stream"`
	// Messenger configures delivery of rendered events to sessions.
	Messenger MessengerConfig `json:"messenger"`
}

// StreamConfig tunes the event-stream client.
type StreamConfig struct {
	MaxRetries       int `json:"max_retries,omitempty"`
	BaseDelaySeconds int `json:"base_delay_seconds,omitempty"`
	MaxDelaySeconds  int `json:"max_delay_seconds,omitempty"`
}

// MessengerConfig configures the session messenger.
type MessengerConfig struct {
	// TmuxCommand is the tmux binary used to deliver messages. Default "tmux".
	TmuxCommand string `json:"tmux_command,omitempty"`
}

// DefaultPath returns the configuration file path, honoring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hubwatch", "config.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hubwatch", "config.json"), nil
}

// Load reads the config file at path, applies defaults and environment
// overrides, and returns the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path) //nolint:gosec // G304 - path from user config directory
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDefault loads the config from DefaultPath.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if repo := os.Getenv("HUBWATCH_REPO"); repo != "" {
		c.Repo = repo
	}
	if events := os.Getenv("HUBWATCH_EVENTS"); events != "" {
		c.Events = splitList(events)
	}
	if raw := os.Getenv("HUBWATCH_STREAM_MAX_RETRIES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			c.Stream.MaxRetries = n
		}
	}
}

func (c *Config) applyDefaults() {
	if len(c.Events) == 0 {
		c.Events = append([]string(nil), DefaultEvents...)
	}
	if c.Stream.MaxRetries <= 0 {
		c.Stream.MaxRetries = DefaultMaxRetries
	}
	if c.Stream.BaseDelaySeconds <= 0 {
		c.Stream.BaseDelaySeconds = DefaultBaseDelaySeconds
	}
	if c.Stream.MaxDelaySeconds <= 0 {
		c.Stream.MaxDelaySeconds = DefaultMaxDelaySeconds
	}
	if c.Messenger.TmuxCommand == "" {
		c.Messenger.TmuxCommand = "tmux"
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
