// Package config holds all veracity configuration, loaded from YAML with
// environment-variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all veracity configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Queue   QueueConfig   `yaml:"queue"`
	Sync    SyncConfig    `yaml:"sync"`
	Remote  RemoteConfig  `yaml:"remote"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the durable store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// CacheConfig configures the similarity-indexed result cache.
type CacheConfig struct {
	Capacity            int     `yaml:"capacity"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// QueueConfig configures the durable sync queue.
type QueueConfig struct {
	RetryCeiling int `yaml:"retry_ceiling"`
}

// SyncConfig configures the sync coordinator. Durations are strings
// ("15s", "5m") parsed with time.ParseDuration.
type SyncConfig struct {
	AttemptTimeout string `yaml:"attempt_timeout"`
	BackoffInitial string `yaml:"backoff_initial"`
	BackoffMax     string `yaml:"backoff_max"`
}

// RemoteConfig configures the remote delivery endpoint and the connectivity
// probe.
type RemoteConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	ProbeInterval string `yaml:"probe_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "veracity",
		Version: "1.0.0",

		Storage: StorageConfig{
			DatabasePath: "data/veracity.db",
		},
		Cache: CacheConfig{
			Capacity:            10000,
			SimilarityThreshold: 0.8,
		},
		Queue: QueueConfig{
			RetryCeiling: 5,
		},
		Sync: SyncConfig{
			AttemptTimeout: "15s",
			BackoffInitial: "5s",
			BackoffMax:     "5m",
		},
		Remote: RemoteConfig{
			BaseURL:       "http://localhost:8080",
			ProbeInterval: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, returning defaults when the file
// does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments override file values without
// editing the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VERACITY_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("VERACITY_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("VERACITY_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("VERACITY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Duration parses a duration field, falling back to def on empty or malformed
// values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
