package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IMAPConfig holds connection-level IMAP settings shared by all accounts.
type IMAPConfig struct {
	// TimeoutSec bounds every connection attempt and, transitively,
	// every blocked protocol round-trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// DebugLog, when non-empty, is a file path receiving a raw protocol
	// trace of every connection.
	DebugLog string `mapstructure:"debug_log" yaml:"debug_log"`
}

// CacheConfig controls the optional server-response cache.
type CacheConfig struct {
	// ServerSideEnabled enables wrapping connections with a response
	// cache when a cache backend is available. Absence of a backend
	// degrades to uncached operation.
	ServerSideEnabled bool `mapstructure:"server_side_enabled" yaml:"server_side_enabled"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DBPath locates the SQLite database holding accounts, sync tokens,
	// and cached responses.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Locale selects the language used for role folder display names.
	Locale string `mapstructure:"locale" yaml:"locale"`

	IMAP  IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsync", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath: "mailsync.db",
		Locale: "en",
		IMAP: IMAPConfig{
			TimeoutSec: 20,
		},
		Cache: CacheConfig{
			ServerSideEnabled: true,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("db_path", "mailsync.db")
	v.SetDefault("locale", "en")
	v.SetDefault("imap.timeout_sec", 20)
	v.SetDefault("cache.server_side_enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.IMAP.TimeoutSec <= 0 {
		cfg.IMAP.TimeoutSec = 20
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

	v.Set("db_path", cfg.DBPath)
	v.Set("locale", cfg.Locale)
	v.Set("imap", cfg.IMAP)
	v.Set("cache", cfg.Cache)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
