// Package config loads and persists the agent's configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Environment variable prefix for overrides (DEVAGENT_API_URL, etc.)
const EnvPrefix = "DEVAGENT"

// Config holds all configuration for the agent (spec.md §3 "Config").
type Config struct {
	APIUrl               string `mapstructure:"api_url" json:"api_url"`
	APIKey               string `mapstructure:"api_key" json:"api_key"`
	Model                string `mapstructure:"model" json:"model"`
	MaxContextTokens     int    `mapstructure:"max_context_tokens" json:"max_context_tokens"`
	CommandTimeout       int    `mapstructure:"command_timeout" json:"command_timeout"` // seconds
	MaxRetries           int    `mapstructure:"max_retries" json:"max_retries"`
	MaxRetriesAutomated  int    `mapstructure:"max_retries_automated" json:"max_retries_automated"`
	MaxLoops             int    `mapstructure:"max_loops" json:"max_loops"`
	SessionRetentionDays int    `mapstructure:"session_retention_days" json:"session_retention_days"`
}

// Defaults, per spec.md §3 "Config".
const (
	DefaultMaxContextTokens     = 131072
	DefaultCommandTimeout       = 30
	DefaultMaxRetries           = 3
	DefaultMaxRetriesAutomated  = 10
	DefaultMaxLoops             = 1000
	DefaultSessionRetentionDays = 30
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("model", "")
	v.SetDefault("max_context_tokens", DefaultMaxContextTokens)
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("max_retries_automated", DefaultMaxRetriesAutomated)
	v.SetDefault("max_loops", DefaultMaxLoops)
	v.SetDefault("session_retention_days", DefaultSessionRetentionDays)
}

// Dir returns the canonical per-OS config directory (spec.md §6).
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("config: APPDATA is not set")
		}
		return filepath.Join(appData, "dev-agent"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "dev-agent"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return filepath.Join(home, ".dev-agent"), nil
	}
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SessionsDir returns the sessions directory, a sibling of the config file.
func SessionsDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions"), nil
}

// Exists reports whether a config file is already present on disk.
func Exists() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config file, filling in defaults for any missing field,
// then applies environment overrides. It never fails solely because the
// file is absent — first-run setup is the caller's responsibility.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path, err := Path()
	if err != nil {
		return nil, err
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if !os.IsNotExist(err) {
				if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
					return nil, fmt.Errorf("config: reading %s: %w", path, err)
				}
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills any zero-valued field with its documented default.
// Needed in addition to viper's SetDefault, which only covers keys that are
// absent: an explicit zero in config.json or in an environment override
// would otherwise survive unmarshalling.
func applyDefaults(cfg *Config) {
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetriesAutomated == 0 {
		cfg.MaxRetriesAutomated = DefaultMaxRetriesAutomated
	}
	if cfg.MaxLoops == 0 {
		cfg.MaxLoops = DefaultMaxLoops
	}
	if cfg.SessionRetentionDays == 0 {
		cfg.SessionRetentionDays = DefaultSessionRetentionDays
	}
}

// Save writes the config to its canonical path, pretty-printed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// MaxRetriesFor returns the retry cap for the given mode (spec.md §4.2).
func (c *Config) MaxRetriesFor(automated bool) int {
	if automated {
		return c.MaxRetriesAutomated
	}
	return c.MaxRetries
}
