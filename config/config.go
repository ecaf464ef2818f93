// Package config holds the adapter's runtime configuration: built-in
// defaults, optionally overridden by a JSON file, then by NERVE_* environment
// variables, then by command-line flags in cmd.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultSocketPath is where the core listens unless configured otherwise.
const DefaultSocketPath = "/tmp/nerve.sock"

// EngineConfig selects and tunes the delegated search engine.
type EngineConfig struct {
	// Kind is "corpus" (in-memory, default) or "http".
	Kind string `json:"kind"`
	// URL is the search service endpoint; required when Kind is "http".
	URL string `json:"url,omitempty"`
	// CorpusPath optionally loads the corpus engine's documents from a JSON
	// file.
	CorpusPath string `json:"corpus_path,omitempty"`
	// RateLimit caps searches per second; 0 disables the limiter.
	RateLimit float64 `json:"rate_limit,omitempty"`
	// RateBurst is the limiter's burst size; defaults to 1 when a rate is set.
	RateBurst int `json:"rate_burst,omitempty"`
	// Timeout bounds each search as a Go duration string (e.g. "30s").
	// Empty disables the timeout; the adapter imposes none by default.
	Timeout string `json:"timeout,omitempty"`
}

// Config is the adapter's full configuration.
type Config struct {
	SocketPath string       `json:"socket_path"`
	LogLevel   string       `json:"log_level"`
	Engine     EngineConfig `json:"engine"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SocketPath: DefaultSocketPath,
		LogLevel:   "info",
		Engine: EngineConfig{
			Kind: "corpus",
		},
	}
}

// Load builds the configuration from defaults, the JSON file at path (if
// path is non-empty), and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NERVE_SOCKET"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("NERVE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NERVE_ENGINE_KIND"); v != "" {
		c.Engine.Kind = v
	}
	if v := os.Getenv("NERVE_ENGINE_URL"); v != "" {
		c.Engine.URL = v
	}
	if v := os.Getenv("NERVE_ENGINE_RATE_LIMIT"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.RateLimit = rate
		}
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("config: socket path must not be empty")
	}
	switch c.Engine.Kind {
	case "corpus":
	case "http":
		if c.Engine.URL == "" {
			return fmt.Errorf("config: engine url required for http engine")
		}
	default:
		return fmt.Errorf("config: unknown engine kind %q", c.Engine.Kind)
	}
	if _, err := c.Engine.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses the engine timeout. Zero means no timeout.
func (e EngineConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: invalid engine timeout %q: %w", e.Timeout, err)
	}
	return d, nil
}
