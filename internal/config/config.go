// Package config provides configuration management for Harrier.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Harrier configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Learning   LearningConfig   `yaml:"learning"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings. The URL itself comes
// from the environment so credentials stay out of config files.
type DatabaseConfig struct {
	URLEnv         string        `yaml:"url_env"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RedisConfig holds the cross-job duplicate cache settings.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	SeenTTL     time.Duration `yaml:"seen_ttl"`
}

// ExtractionConfig holds the pattern engine settings.
type ExtractionConfig struct {
	ValidateHashLengths bool `yaml:"validate_hash_lengths"`
	ExcludePrivateIPs   bool `yaml:"exclude_private_ips"`
	ContextWindow       int  `yaml:"context_window"`
}

// JobsConfig bounds the bulk-ingestion engine.
type JobsConfig struct {
	MaxActiveJobs int `yaml:"max_active_jobs"`
	MaxRecords    int `yaml:"max_records"`
}

// EnrichmentConfig holds the upstream enrichment provider settings.
type EnrichmentConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// LearningConfig holds the feedback engine thresholds.
type LearningConfig struct {
	AutoValidateScore float64 `yaml:"auto_validate_score"`
	ConflictScore     float64 `yaml:"conflict_score"`
	RetrainThreshold  int     `yaml:"retrain_threshold"`
	MinTotalFeedback  int     `yaml:"min_total_feedback"`
}

// NotifierConfig holds the conflict-alert webhook settings.
type NotifierConfig struct {
	Enabled       bool          `yaml:"enabled"`
	WebhookURLEnv string        `yaml:"webhook_url_env"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URLEnv:         "HARRIER_DATABASE_URL",
			ConnectTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:     false,
			Addr:        "localhost:6379",
			PasswordEnv: "HARRIER_REDIS_PASSWORD",
			DB:          0,
			PoolSize:    10,
			SeenTTL:     24 * time.Hour,
		},
		Extraction: ExtractionConfig{
			ValidateHashLengths: true,
			ExcludePrivateIPs:   true,
			ContextWindow:       100,
		},
		Jobs: JobsConfig{
			MaxActiveJobs: 10,
			MaxRecords:    100000,
		},
		Enrichment: EnrichmentConfig{
			Enabled:    false,
			APIKeyEnv:  "HARRIER_ENRICHMENT_API_KEY",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Learning: LearningConfig{
			AutoValidateScore: 0.8,
			ConflictScore:     0.3,
			RetrainThreshold:  50,
			MinTotalFeedback:  20,
		},
		Notifier: NotifierConfig{
			Enabled:       false,
			WebhookURLEnv: "HARRIER_WEBHOOK_URL",
			Timeout:       10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
