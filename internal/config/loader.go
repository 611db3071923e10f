package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// appName names the user config directory.
const appName = "pmcopilot"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PMCOPILOT"

// ConfigPathEnv names the variable holding an explicit config file path.
const ConfigPathEnv = "PMCOPILOT_CONFIG_PATH"

// LocalConfigFile is the config file looked up in the working directory.
const LocalConfigFile = "pmcopilot.yaml"

// Loader loads [Config] values with Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] seeded with [DefaultConfig] and bound to
// PMCOPILOT_* environment variables.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	// Short alias for the most commonly overridden key.
	_ = v.BindEnv("api.base_url", "PMCOPILOT_API_BASE_URL", "PMCOPILOT_API_URL")

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("editor.cancel_on_switch", cfg.Editor.CancelOnSwitch)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("output.no_color", cfg.Output.NoColor)
	v.SetDefault("output.markdown.enabled", cfg.Output.Markdown.Enabled)
	v.SetDefault("output.markdown.style", cfg.Output.Markdown.Style)
	v.SetDefault("output.markdown.word_wrap", cfg.Output.Markdown.WordWrap)
	v.SetDefault("output.markdown.emoji", cfg.Output.Markdown.Emoji)
}

// Load reads every config file that exists, in priority order, then applies
// environment overrides.
//
// A file named by PMCOPILOT_CONFIG_PATH must exist; the other locations are
// optional.
func (l *Loader) Load() (*Config, error) {
	var paths []string
	if _, err := os.Stat(LocalConfigFile); err == nil {
		paths = append(paths, LocalConfigFile)
	}
	if userPath, err := DefaultConfigPath(); err == nil {
		if _, err := os.Stat(userPath); err == nil {
			paths = append(paths, userPath)
		}
	}
	if envPath := os.Getenv(ConfigPathEnv); envPath != "" {
		paths = append(paths, envPath)
	}

	for _, p := range paths {
		l.v.SetConfigFile(p)
		if err := l.v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", p, err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads a single config file on top of the defaults.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigDir returns the platform-standard pmcopilot config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the user config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
