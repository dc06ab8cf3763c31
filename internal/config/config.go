package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	// APIBase is the root URL of the sync authority.
	APIBase string `mapstructure:"api_base" yaml:"api_base"`

	// DBPath is where the local SQLite database lives.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// SyncIntervalSec is how often (in seconds) the trigger attempts
	// a sync.
	SyncIntervalSec int `mapstructure:"sync_interval_sec" yaml:"sync_interval_sec"`

	// LogLevel and LogEncoding configure structured logging.
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogEncoding string `mapstructure:"log_encoding" yaml:"log_encoding"`
}

// DefaultPath returns the default configuration file location,
// ~/.config/timecheck/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "timecheck", "config.yaml")
}

// defaultConfig returns a sensible default configuration.
func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	dataDir := "."
	if err == nil {
		dataDir = filepath.Join(home, ".local", "share", "timecheck")
	}
	return &Config{
		APIBase:         "http://127.0.0.1:8000",
		DBPath:          filepath.Join(dataDir, "timecheck.db"),
		SyncIntervalSec: 15,
		LogLevel:        "info",
		LogEncoding:     "console",
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultConfig()
	v.SetDefault("api_base", defaults.APIBase)
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("sync_interval_sec", defaults.SyncIntervalSec)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_encoding", defaults.LogEncoding)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.SyncIntervalSec <= 0 {
		cfg.SyncIntervalSec = defaults.SyncIntervalSec
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file at path, creating parent
// directories if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api_base", cfg.APIBase)
	v.Set("db_path", cfg.DBPath)
	v.Set("sync_interval_sec", cfg.SyncIntervalSec)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_encoding", cfg.LogEncoding)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
