// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatstore.
//
// Configuration file locations (in order of precedence):
//   - the path passed with --config
//   - ~/.chatstore/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatstore configuration.
type Config struct {
	// DataDir is the application data directory. Conversations live in
	// DataDir/chat_conversations; settings documents sit next to it.
	DataDir string `toml:"data_dir" json:"data_dir"`

	Server ServerConfig `toml:"server" json:"server"`
	Watch  WatchConfig  `toml:"watch" json:"watch"`
}

// ServerConfig controls the HTTP API used by the desktop shell.
type ServerConfig struct {
	// Host is the listen address. Keep it on loopback unless the shell runs elsewhere.
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`

	// RateLimitRPS and RateLimitBurst size the per-client token bucket (0 disables).
	RateLimitRPS   float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst" json:"rate_limit_burst"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes"`
}

// WatchConfig controls filesystem change notifications.
type WatchConfig struct {
	Enabled        bool `toml:"enabled" json:"enabled"`
	DebounceMillis int  `toml:"debounce_millis" json:"debounce_millis"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// AppID names the data directory, matching the desktop shell's bundle id.
	AppID = "com.chat.app"

	DefaultHost           = "127.0.0.1"
	DefaultPort           = 3000
	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100
	DefaultMaxBodyBytes   = 10 << 20
	DefaultDebounceMillis = 200
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   DefaultRateLimitRPS,
			RateLimitBurst: DefaultRateLimitBurst,
			MaxBodyBytes:   DefaultMaxBodyBytes,
		},
		Watch: WatchConfig{
			Enabled:        true,
			DebounceMillis: DefaultDebounceMillis,
		},
	}
}

// DefaultDataDir returns the per-user application data directory, e.g.
// ~/Library/Application Support/com.chat.app on macOS or
// ~/.config/com.chat.app on Linux.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppID)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+AppID)
	}
	return AppID
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatstore configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatstore"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.chatstore/config.toml if it exists, otherwise starts from
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = int(c.Server.RateLimitRPS)
		if c.Server.RateLimitBurst < 1 {
			c.Server.RateLimitBurst = 1
		}
	}
	if c.Watch.DebounceMillis == 0 {
		c.Watch.DebounceMillis = defaults.Watch.DebounceMillis
	}
}

// ApplyEnvOverrides applies environment variable overrides:
//   - CHATSTORE_DATA_DIR: overrides data_dir
//   - CHATSTORE_HOST: overrides server.host
//   - CHATSTORE_PORT: overrides server.port
//   - CHATSTORE_WATCH: overrides watch.enabled ("1"/"true" or "0"/"false")
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("CHATSTORE_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if host := os.Getenv("CHATSTORE_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("CHATSTORE_PORT"); port != "" {
		// Invalid values are left for Validate to report.
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		} else {
			c.Server.Port = -1
		}
	}
	if watch := os.Getenv("CHATSTORE_WATCH"); watch != "" {
		c.Watch.Enabled = watch == "1" || strings.EqualFold(watch, "true")
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.chatstore/config.toml.
func Save(cfg *Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return path, SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path, creating the parent directory if needed.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# chatstore configuration file\n")
	buf.WriteString("# Generated by chatstore - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<invalid config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, ValidationError{Field: "data_dir", Message: "must not be empty"})
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("invalid port %d, must be 1-65535", c.Server.Port),
		})
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit_rps", Message: "must not be negative"})
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit_burst", Message: "must not be negative"})
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, ValidationError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "" {
			errs = append(errs, ValidationError{Field: "server.allowed_origins", Message: "empty origin"})
			break
		}
	}
	if c.Watch.DebounceMillis < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce_millis", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var v ValidateErrors
	return errors.As(err, &v)
}
