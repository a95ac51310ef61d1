package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultVersion  = 1
	DefaultLogLevel = "info"

	// Default values for the WebSocket bridge.
	DefaultListen = "127.0.0.1:8765"
	DefaultPath   = "/ws"

	// DefaultJetStreamDir is created under os.TempDir when jetstream_dir is unset.
	DefaultJetStreamDir = "calculator-jetstream"

	// DefaultDir and DefaultFile locate the config relative to the working directory.
	DefaultDir  = ".calculator"
	DefaultFile = "config.json"
)

// DefaultPathname returns the default config location.
func DefaultPathname() string {
	return filepath.Join(DefaultDir, DefaultFile)
}

// Config defines settings stored in .calculator/config.json.
type Config struct {
	Version  int           `json:"version"`
	LogLevel string        `json:"log_level"`
	Bridge   *BridgeConfig `json:"bridge,omitempty"`
	NATS     *NATSConfig   `json:"nats,omitempty"`
}

// BridgeConfig holds WebSocket bridge settings.
type BridgeConfig struct {
	// Listen is the host:port the bridge binds to (default 127.0.0.1:8765).
	Listen *string `json:"listen,omitempty"`

	// Path is the HTTP path that upgrades to WebSocket (default "/ws").
	Path *string `json:"path,omitempty"`
}

// GetListen returns the listen address (default 127.0.0.1:8765).
func (c *BridgeConfig) GetListen() string {
	if c == nil || c.Listen == nil {
		return DefaultListen
	}
	return *c.Listen
}

// GetPath returns the WebSocket path (default "/ws").
func (c *BridgeConfig) GetPath() string {
	if c == nil || c.Path == nil {
		return DefaultPath
	}
	return *c.Path
}

// Validate checks the listen address and path.
func (c *BridgeConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.Listen != nil {
		if _, _, err := net.SplitHostPort(*c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", *c.Listen, err)
		}
	}
	if c.Path != nil && !strings.HasPrefix(*c.Path, "/") {
		return fmt.Errorf("path must start with /, got %q", *c.Path)
	}
	return nil
}

// NATSConfig holds settings for the embedded NATS bridge.
type NATSConfig struct {
	// Enabled controls whether the NATS bridge starts (default false).
	Enabled *bool `json:"enabled,omitempty"`

	// JetStreamDir is the JetStream storage directory
	// (default "" = calculator-jetstream under the system temp dir).
	JetStreamDir *string `json:"jetstream_dir,omitempty"`
}

// IsEnabled returns whether the NATS bridge is enabled (default false).
func (c *NATSConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return false
	}
	return *c.Enabled
}

// GetJetStreamDir returns the JetStream storage directory, falling back to
// a directory under os.TempDir.
func (c *NATSConfig) GetJetStreamDir() string {
	if c == nil || c.JetStreamDir == nil || *c.JetStreamDir == "" {
		return filepath.Join(os.TempDir(), DefaultJetStreamDir)
	}
	return *c.JetStreamDir
}

// Default returns the default config.
func Default() Config {
	return Config{
		Version:  DefaultVersion,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads config from disk and applies defaults for zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config not found: %w", err)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parse(data)
}

// LoadOrDefault reads config from disk, returning defaults if file doesn't exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func parse(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = DefaultVersion
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Save writes a config to disk, creating its directory.
func Save(path string, cfg Config) error {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Level parses LogLevel into a zap level.
func (c Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// Validate ensures config values are within supported ranges.
func (c Config) Validate() error {
	if c.Version != DefaultVersion {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("invalid bridge config: %w", err)
	}
	return nil
}
