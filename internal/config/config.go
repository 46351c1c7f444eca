// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Event source configuration
	Source SourceConfig `yaml:"source"`

	// Event filter configuration
	Filter FilterConfig `yaml:"filter"`

	// Run configuration
	Run RunConfig `yaml:"run"`

	// Index catalog configuration
	Catalog CatalogConfig `yaml:"catalog"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// SourceConfig holds event source settings.
type SourceConfig struct {
	Type         string `envconfig:"SCOUT_SOURCE_TYPE" yaml:"type"`
	Path         string `envconfig:"SCOUT_SOURCE_PATH" yaml:"path"`
	URI          string `envconfig:"SCOUT_MONGO_URI" yaml:"uri"`
	Database     string `envconfig:"SCOUT_MONGO_DATABASE" yaml:"database"`
	KafkaBrokers string `envconfig:"SCOUT_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string `envconfig:"SCOUT_KAFKA_TOPIC" yaml:"kafka_topic"`
	KafkaGroup   string `envconfig:"SCOUT_KAFKA_GROUP" yaml:"kafka_group"`
	RedisURL     string `envconfig:"SCOUT_REDIS_URL" yaml:"redis_url"`
	RedisStream  string `envconfig:"SCOUT_REDIS_STREAM" yaml:"redis_stream"`
}

// FilterConfig holds pre-pipeline event filter settings.
type FilterConfig struct {
	// Namespaces are glob patterns (db.collection, db.*, *.collection, *).
	// Empty means all namespaces pass.
	Namespaces []string `envconfig:"SCOUT_NAMESPACES" yaml:"namespaces"`

	// SlowMS drops events faster than this threshold, in milliseconds.
	SlowMS int `envconfig:"SCOUT_SLOW_MS" yaml:"slow_ms"`
}

// RunConfig holds run controller settings.
type RunConfig struct {
	// TimeoutMin bounds a watch run in minutes. 0 means no timeout.
	TimeoutMin int `envconfig:"SCOUT_TIMEOUT_MIN" yaml:"timeout_min"`

	// Verify enables checking shapes against existing indexes. When false
	// every observed shape becomes a recommendation.
	Verify bool `envconfig:"SCOUT_VERIFY" yaml:"verify"`

	// Verbose exposes per-event shape and match decisions in the report.
	Verbose bool `envconfig:"SCOUT_VERBOSE" yaml:"verbose"`
}

// CatalogConfig holds index catalog cache settings.
type CatalogConfig struct {
	// RefreshSec is the watch-mode snapshot lifetime in seconds.
	// 0 caches snapshots for the whole run.
	RefreshSec int `envconfig:"SCOUT_CATALOG_REFRESH_SEC" yaml:"refresh_sec"`

	// CacheSize bounds the number of cached namespace snapshots.
	CacheSize int `envconfig:"SCOUT_CATALOG_CACHE_SIZE" yaml:"cache_size"`

	// FetchPerSec bounds index list fetches against the store.
	FetchPerSec int `envconfig:"SCOUT_CATALOG_FETCH_PER_SEC" yaml:"fetch_per_sec"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SCOUT_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SCOUT_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config
// file. Validation is the caller's step: command-line flags layer on top of
// the loaded config before the final Validate.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Source = SourceConfig{
		Type:        "profiler",
		URI:         "mongodb://localhost:27017",
		KafkaGroup:  "index-scout",
		RedisURL:    "redis://localhost:6379",
		RedisStream: "index-scout.events",
	}

	cfg.Filter = FilterConfig{
		SlowMS: 0,
	}

	cfg.Run = RunConfig{
		TimeoutMin: 0,
		Verify:     true,
	}

	cfg.Catalog = CatalogConfig{
		RefreshSec:  0,
		CacheSize:   256,
		FetchPerSec: 5,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	validSourceTypes := map[string]bool{"file": true, "profiler": true, "kafka": true, "redis": true, "memory": true}
	if !validSourceTypes[c.Source.Type] {
		errs = append(errs, fmt.Sprintf("invalid source type: %s (must be file, profiler, kafka, redis, or memory)", c.Source.Type))
	}

	switch c.Source.Type {
	case "file":
		if c.Source.Path == "" {
			errs = append(errs, "source path required for file source")
		}
	case "profiler":
		if c.Source.Database == "" {
			errs = append(errs, "database required for profiler source")
		}
	case "kafka":
		if c.Source.KafkaBrokers == "" {
			errs = append(errs, "kafka_brokers required for kafka source")
		}
		if c.Source.KafkaTopic == "" {
			errs = append(errs, "kafka_topic required for kafka source")
		}
	}

	if c.Filter.SlowMS < 0 {
		errs = append(errs, "slow_ms must be non-negative")
	}

	for _, pattern := range c.Filter.Namespaces {
		if strings.TrimSpace(pattern) == "" {
			errs = append(errs, "namespace patterns must be non-empty")
			break
		}
	}

	if c.Run.TimeoutMin < 0 {
		errs = append(errs, "timeout_min must be non-negative")
	}

	if c.Catalog.RefreshSec < 0 {
		errs = append(errs, "catalog refresh_sec must be non-negative")
	}

	if c.Catalog.CacheSize < 1 {
		errs = append(errs, "catalog cache_size must be positive")
	}

	if c.Catalog.FetchPerSec < 1 {
		errs = append(errs, "catalog fetch_per_sec must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
