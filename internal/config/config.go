package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ligustah/stitch/internal/progress"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "STITCH_"

// Config defines configuration for the stitch CLI.
type Config struct {
	InputDir    string        `yaml:"input_dir"`
	OutputDir   string        `yaml:"output_dir"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int64         `yaml:"max_body_size"`
	Bucket      string        `yaml:"bucket"`
	Prefix      string        `yaml:"prefix"`
	Workers     int           `yaml:"workers"`
	Progress    bool          `yaml:"progress"`
	LogLevel    string        `yaml:"log_level"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior for asset fetches.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		InputDir:    "ai_files",
		OutputDir:   "dist",
		Concurrency: 4,
		Timeout:     30 * time.Second,
		Bucket:      "assets",
		Workers:     8,
		LogLevel:    "info",
		Retry: RetryConfig{
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	InputDir    string          `yaml:"input_dir"`
	OutputDir   string          `yaml:"output_dir"`
	Concurrency int             `yaml:"concurrency"`
	Timeout     string          `yaml:"timeout"`
	MaxBodySize string          `yaml:"max_body_size"`
	Bucket      string          `yaml:"bucket"`
	Prefix      string          `yaml:"prefix"`
	Workers     int             `yaml:"workers"`
	Progress    bool            `yaml:"progress"`
	LogLevel    string          `yaml:"log_level"`
	Retry       yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		InputDir:    yc.InputDir,
		OutputDir:   yc.OutputDir,
		Concurrency: yc.Concurrency,
		Bucket:      yc.Bucket,
		Prefix:      yc.Prefix,
		Workers:     yc.Workers,
		Progress:    yc.Progress,
		LogLevel:    yc.LogLevel,
		Retry:       RetryConfig{Attempts: yc.Retry.Attempts},
	}

	if yc.Timeout != "" {
		if override.Timeout, err = time.ParseDuration(yc.Timeout); err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
	}
	if yc.MaxBodySize != "" {
		if override.MaxBodySize, err = progress.ParseBytes(yc.MaxBodySize); err != nil {
			return Config{}, fmt.Errorf("parse max_body_size: %w", err)
		}
	}
	if yc.Retry.Backoff != "" {
		if override.Retry.Backoff, err = time.ParseDuration(yc.Retry.Backoff); err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
	}
	if yc.Retry.MaxBackoff != "" {
		if override.Retry.MaxBackoff, err = time.ParseDuration(yc.Retry.MaxBackoff); err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
	}

	return Default().Merge(override), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STITCH_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"INPUT_DIR":  &c.InputDir,
		"OUTPUT_DIR": &c.OutputDir,
		"BUCKET":     &c.Bucket,
		"PREFIX":     &c.Prefix,
		"LOG_LEVEL":  &c.LogLevel,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CONCURRENCY":    &c.Concurrency,
		"WORKERS":        &c.Workers,
		"RETRY_ATTEMPTS": &c.Retry.Attempts,
	}
	for name, dst := range ints {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":           &c.Timeout,
		"RETRY_BACKOFF":     &c.Retry.Backoff,
		"RETRY_MAX_BACKOFF": &c.Retry.MaxBackoff,
	}
	for name, dst := range durations {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(EnvPrefix + "MAX_BODY_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse %sMAX_BODY_SIZE: %w", EnvPrefix, err)
		}
		c.MaxBodySize = size
	}
	if v := os.Getenv(EnvPrefix + "PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	if c.MaxBodySize < 0 {
		return errors.New("config: max_body_size must not be negative")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	if c.Retry.Attempts > 0 && c.Retry.Backoff <= 0 {
		return errors.New("config: retry.backoff must be positive when retries are enabled")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.InputDir != "" {
		c.InputDir = override.InputDir
	}
	if override.OutputDir != "" {
		c.OutputDir = override.OutputDir
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.MaxBodySize != 0 {
		c.MaxBodySize = override.MaxBodySize
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Prefix != "" {
		c.Prefix = override.Prefix
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
