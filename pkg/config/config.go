// Package config loads persephone settings from defaults, an optional YAML
// file and PERSEPHONE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tartarus-sandbox/persephone/pkg/persephone/losses"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PERSEPHONE_LOG_LEVEL
// or PERSEPHONE_STORE_REDIS_ADDR.
const EnvPrefix = "PERSEPHONE"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel    string    `mapstructure:"log_level" yaml:"log_level"`
	Levels      []int     `mapstructure:"levels" yaml:"levels"`
	Quantiles   []float64 `mapstructure:"quantiles" yaml:"quantiles"`
	NumSamples  int       `mapstructure:"num_samples" yaml:"num_samples"`
	Seed        uint64    `mapstructure:"seed" yaml:"seed"` // 0 seeds from the clock
	MetricsAddr string    `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Archive    ArchiveConfig    `mapstructure:"archive" yaml:"archive"`
	Prometheus PrometheusConfig `mapstructure:"prometheus" yaml:"prometheus"`
	Backtest   BacktestConfig   `mapstructure:"backtest" yaml:"backtest"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"` // local | redis
	Dir           string `mapstructure:"dir" yaml:"dir"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

type ArchiveConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"` // none | local | s3
	Dir         string `mapstructure:"dir" yaml:"dir"`
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key" yaml:"s3_access_key,omitempty"`
	S3SecretKey string `mapstructure:"s3_secret_key" yaml:"s3_secret_key,omitempty"`
}

type PrometheusConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Query    string        `mapstructure:"query" yaml:"query"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Step     time.Duration `mapstructure:"step" yaml:"step"`
	QPS      float64       `mapstructure:"qps" yaml:"qps"`
}

type BacktestConfig struct {
	Resolution  time.Duration `mapstructure:"resolution" yaml:"resolution"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")
	v.SetDefault("levels", []int{})
	v.SetDefault("quantiles", []float64{})
	v.SetDefault("num_samples", losses.DefaultNumSamples)
	v.SetDefault("seed", 0)
	v.SetDefault("metrics_addr", "")

	v.SetDefault("store.backend", "local")
	v.SetDefault("store.dir", "/var/lib/persephone")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.retention_days", 90)

	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.dir", "/var/lib/persephone/archive")
	v.SetDefault("archive.s3_endpoint", "")
	v.SetDefault("archive.s3_region", "us-east-1")
	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_access_key", "")
	v.SetDefault("archive.s3_secret_key", "")

	v.SetDefault("prometheus.url", "http://localhost:9090")
	v.SetDefault("prometheus.query", "")
	v.SetDefault("prometheus.interval", 5*time.Minute)
	v.SetDefault("prometheus.step", time.Minute)
	v.SetDefault("prometheus.qps", 5.0)

	v.SetDefault("backtest.resolution", 15*time.Minute)
	v.SetDefault("backtest.concurrency", 4)
}

// New returns a viper instance with defaults and environment binding but
// no config file.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.NumSamples <= 0 {
		return fmt.Errorf("%w: num_samples must be positive, got %d", ErrInvalidConfig, c.NumSamples)
	}
	switch c.Store.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	switch c.Archive.Backend {
	case "none", "local":
	case "s3":
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("%w: archive.s3_bucket is required for the s3 backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: archive.backend %q", ErrInvalidConfig, c.Archive.Backend)
	}
	if _, err := c.QuantileSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// QuantileSet builds the configured quantiles: levels when set, else
// explicit quantiles, else losses.DefaultLevels.
func (c *Config) QuantileSet() (*losses.QuantileSet, error) {
	switch {
	case len(c.Levels) > 0:
		return losses.FromLevels(c.Levels)
	case len(c.Quantiles) > 0:
		return losses.FromQuantiles(c.Quantiles)
	default:
		return losses.DefaultQuantileSet(), nil
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
