package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults shared by the config loader and the components that consume it.
const (
	DefaultAPIURL          = "http://localhost:8080"
	DefaultAPITimeoutMS    = 5000
	DefaultWatchIntervalMS = 1000
)

// APIConfig describes how to reach the todo backend.
type APIConfig struct {
	// URL is the backend base URL (NEXT_PUBLIC_API_URL).
	URL string `mapstructure:"url" yaml:"url"`

	// TimeoutMS is the per-request timeout in milliseconds
	// (NEXT_PUBLIC_API_TIMEOUT).
	TimeoutMS int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout returns the request timeout, falling back to the default
// for non-positive values.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return DefaultAPITimeoutMS * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// StateConfig controls where the local session and preferences live.
type StateConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// SecureToken keeps the bearer token in the OS keyring instead of
	// the state database.
	SecureToken bool `mapstructure:"secure_token" yaml:"secure_token"`
}

// SessionConfig holds cross-instance session propagation settings.
type SessionConfig struct {
	WatchIntervalMS int `mapstructure:"watch_interval_ms" yaml:"watch_interval_ms"`
}

// WatchInterval returns how often other instances' session writes are polled.
func (c SessionConfig) WatchInterval() time.Duration {
	if c.WatchIntervalMS <= 0 {
		return DefaultWatchIntervalMS * time.Millisecond
	}
	return time.Duration(c.WatchIntervalMS) * time.Millisecond
}

// LogConfig holds logging preferences. The terminal belongs to the UI,
// so logs always go to a file.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	GroupByPriority bool   `mapstructure:"group_by_priority" yaml:"group_by_priority"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	State   StateConfig   `mapstructure:"state" yaml:"state"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// configDir returns ~/.config/todo-client, or the working directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "todo-client")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todo-client/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			URL:       DefaultAPIURL,
			TimeoutMS: DefaultAPITimeoutMS,
		},
		State: StateConfig{
			DBPath: filepath.Join(dir, "state.db"),
		},
		Session: SessionConfig{
			WatchIntervalMS: DefaultWatchIntervalMS,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Path:   filepath.Join(dir, "todo-client.log"),
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults, environment variables and the
// optional command-line flags still apply.
func LoadConfig(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	defaults := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.url", defaults.API.URL)
	v.SetDefault("api.timeout_ms", defaults.API.TimeoutMS)
	v.SetDefault("state.db_path", defaults.State.DBPath)
	v.SetDefault("state.secure_token", false)
	v.SetDefault("session.watch_interval_ms", defaults.Session.WatchIntervalMS)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.path", defaults.Log.Path)
	v.SetDefault("display.theme", defaults.Display.Theme)
	v.SetDefault("display.group_by_priority", false)

	// The variable names are shared with the web frontend's build.
	if err := v.BindEnv("api.url", "NEXT_PUBLIC_API_URL"); err != nil {
		return nil, fmt.Errorf("binding NEXT_PUBLIC_API_URL: %w", err)
	}
	if err := v.BindEnv("api.timeout_ms", "NEXT_PUBLIC_API_TIMEOUT"); err != nil {
		return nil, fmt.Errorf("binding NEXT_PUBLIC_API_TIMEOUT: %w", err)
	}

	if flags != nil {
		bindings := map[string]string{
			"api.url":       "api-url",
			"log.level":     "log-level",
			"state.db_path": "state-db",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaults
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.URL == "" {
		cfg.API.URL = DefaultAPIURL
	}
	if cfg.API.TimeoutMS <= 0 {
		cfg.API.TimeoutMS = DefaultAPITimeoutMS
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("state", cfg.State)
	v.Set("session", cfg.Session)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
