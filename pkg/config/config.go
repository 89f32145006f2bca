// Package config loads and validates the uploadoor configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConcurrency is the default number of concurrent upload tasks.
	DefaultConcurrency = 32

	// DefaultBatchSize is the default number of files per batch.
	DefaultBatchSize = 128

	// DefaultTimeoutS is the default request timeout in seconds, applied
	// to both the connection and the full request.
	DefaultTimeoutS = 300

	// DefaultFailureLog is the default failure log path, relative to the
	// working directory.
	DefaultFailureLog = "failures.log"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSinkListen is the default listen address for the local sink.
	DefaultSinkListen = "127.0.0.1:8080"

	// DefaultHistoryDriver is the default history database driver.
	DefaultHistoryDriver = "sqlite"

	// DefaultHistorySQLitePath is the default history database location.
	DefaultHistorySQLitePath = "uploadoor-history.db"
)

// Config is the root configuration for uploadoor. Every section is
// optional; CLI flags override file values.
type Config struct {
	Global  GlobalConfig  `yaml:"global"`
	Upload  UploadConfig  `yaml:"upload"`
	Sink    SinkConfig    `yaml:"sink"`
	History HistoryConfig `yaml:"history"`
}

// GlobalConfig contains settings shared by all commands.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// UploadConfig contains upload run settings.
type UploadConfig struct {
	Dir         string  `yaml:"dir"`
	URL         string  `yaml:"url"`
	Concurrency int     `yaml:"concurrency"`
	BatchSize   int     `yaml:"batch_size"`
	TimeoutS    int     `yaml:"timeout_s"`
	RateLimit   float64 `yaml:"rate_limit"`
	FailureLog  string  `yaml:"failure_log"`
}

// Timeout returns the request timeout as a duration.
func (c *UploadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// SinkConfig configures the local upload receiver.
type SinkConfig struct {
	Listen      string              `yaml:"listen"`
	SpoolDir    string              `yaml:"spool_dir,omitempty"`
	CORSOrigins []string            `yaml:"cors_origins,omitempty"`
	RateLimit   SinkRateLimitConfig `yaml:"rate_limit,omitempty"`
}

// SinkRateLimitConfig configures request throttling on the sink.
type SinkRateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// HistoryConfig configures the optional run history database.
type HistoryConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig contains sqlite driver settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains postgres driver settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Upload.Concurrency == 0 {
		c.Upload.Concurrency = DefaultConcurrency
	}

	if c.Upload.BatchSize == 0 {
		c.Upload.BatchSize = DefaultBatchSize
	}

	if c.Upload.TimeoutS == 0 {
		c.Upload.TimeoutS = DefaultTimeoutS
	}

	if c.Upload.FailureLog == "" {
		c.Upload.FailureLog = DefaultFailureLog
	}

	if c.Sink.Listen == "" {
		c.Sink.Listen = DefaultSinkListen
	}

	if c.History.Driver == "" {
		c.History.Driver = DefaultHistoryDriver
	}

	if c.History.SQLite.Path == "" {
		c.History.SQLite.Path = DefaultHistorySQLitePath
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Upload.Concurrency < 1 {
		return fmt.Errorf(
			"upload.concurrency must be >= 1, got %d", c.Upload.Concurrency,
		)
	}

	if c.Upload.BatchSize < 1 {
		return fmt.Errorf(
			"upload.batch_size must be >= 1, got %d", c.Upload.BatchSize,
		)
	}

	if c.Upload.TimeoutS < 1 {
		return fmt.Errorf(
			"upload.timeout_s must be >= 1, got %d", c.Upload.TimeoutS,
		)
	}

	if c.Upload.RateLimit < 0 {
		return fmt.Errorf(
			"upload.rate_limit must be >= 0, got %v", c.Upload.RateLimit,
		)
	}

	if c.Sink.RateLimit.Enabled && c.Sink.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf(
			"sink.rate_limit.requests_per_minute must be >= 1 when enabled, got %d",
			c.Sink.RateLimit.RequestsPerMinute,
		)
	}

	switch c.History.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported history driver: %s", c.History.Driver)
	}

	return nil
}
