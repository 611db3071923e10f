// Package config provides configuration loading and management for pmcopilot.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults work out of the box against a local analysis
// service.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [APIConfig] locates the analysis service
//   - [OutputConfig] controls terminal rendering
//
// Configuration priority (highest to lowest):
//  1. Environment variables (PMCOPILOT_ prefix, e.g. PMCOPILOT_API_BASE_URL)
//  2. Config file specified by PMCOPILOT_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/pmcopilot/config.yaml
//     - macOS: ~/Library/Application Support/pmcopilot/config.yaml
//     - Windows: %APPDATA%\pmcopilot\config.yaml
//  4. ./pmcopilot.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config represents the root configuration structure.
type Config struct {
	// API locates the analysis service.
	API APIConfig `mapstructure:"api"`

	// Editor controls side panel behaviour.
	Editor EditorConfig `mapstructure:"editor"`

	// Server configures the HTTP API started by "pmcopilot serve".
	Server ServerConfig `mapstructure:"server"`

	// Log configures the structured logger.
	Log LogConfig `mapstructure:"log"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`
}

// APIConfig locates the analysis service.
type APIConfig struct {
	// BaseURL is the service root; calls go to {BaseURL}/api/{endpoint}.
	// Default: "http://localhost:5000"
	// Can be overridden with the PMCOPILOT_API_URL environment variable.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each call. Zero disables the bound.
	// Default: 60s
	Timeout time.Duration `mapstructure:"timeout"`
}

// EditorConfig controls side panel behaviour.
type EditorConfig struct {
	// CancelOnSwitch cancels a step's in-flight call when the selection
	// moves away from it.
	// Default: false
	CancelOnSwitch bool `mapstructure:"cancel_on_switch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	// Default: "text"
	Format string `mapstructure:"format"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// NoColor disables ANSI colours regardless of terminal support.
	NoColor bool `mapstructure:"no_color"`

	// Markdown contains markdown rendering configuration.
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

// MarkdownConfig contains configuration for markdown rendering in terminal output.
//
// When enabled, analysis summaries are rendered with proper formatting:
// bold, italic, headers, code blocks, lists, etc.
type MarkdownConfig struct {
	// Enabled controls whether markdown rendering is active.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Style is the glamour theme to use: "dark", "light", "dracula", "tokyo-night".
	// Avoid "auto" as it can cause detection delays on some terminals.
	// Default: "dark"
	Style string `mapstructure:"style"`

	// WordWrap is the column width for text wrapping.
	// Default: 100
	WordWrap int `mapstructure:"word_wrap"`

	// Emoji enables emoji shortcode rendering (e.g., :smile: -> 😄).
	// Default: true
	Emoji bool `mapstructure:"emoji"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Markdown: MarkdownConfig{
				Enabled:  true,
				Style:    "dark",
				WordWrap: 100,
				Emoji:    true,
			},
		},
	}
}

// Validate checks values that cannot be expressed through types alone.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
