package config

import (
	"errors"
	"fmt"
	"strings"

	"carpics/fetcher/internal/domain"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log       LogConfig                `mapstructure:"log"`
	Exteriors ExteriorsConfig          `mapstructure:"exteriors"`
	Fetcher   FetcherConfig            `mapstructure:"fetcher"`
	Redis     RedisConfig              `mapstructure:"redis"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Requests  []domain.DownloadRequest `mapstructure:"requests"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ExteriorsConfig points at the exterior code table
type ExteriorsConfig struct {
	File      string `mapstructure:"file"`
	Selectors int    `mapstructure:"selectors"`
}

// FetcherConfig holds image download settings
type FetcherConfig struct {
	OutputDir            string   `mapstructure:"output_dir"`
	Timeout              int      `mapstructure:"timeout"`
	MaxWorkers           int      `mapstructure:"max_workers"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	FailurePolicy        string   `mapstructure:"failure_policy"`
	UserAgent            string   `mapstructure:"user_agent"`
	Proxies              []string `mapstructure:"proxies"`
	ProxyTestURL         string   `mapstructure:"proxy_test_url"`
}

// RedisConfig holds Redis connection details for the fetch queue
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	StreamPrefix  string `mapstructure:"stream_prefix"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
	BlockTimeout  int    `mapstructure:"block_timeout"`
}

// DatabaseConfig holds the fetch history database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

const (
	FailurePolicyAbort   = "abort"
	FailurePolicyIsolate = "isolate"
)

// Load reads configuration from path, or from config.yaml in the working
// directory when path is empty. A missing file is not an error: defaults and
// environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Fetcher.FailurePolicy {
	case FailurePolicyAbort, FailurePolicyIsolate:
	default:
		return fmt.Errorf("invalid fetcher.failure_policy %q (want %q or %q)",
			c.Fetcher.FailurePolicy, FailurePolicyAbort, FailurePolicyIsolate)
	}
	if c.Fetcher.MaxWorkers < 1 {
		return fmt.Errorf("fetcher.max_workers must be at least 1, got %d", c.Fetcher.MaxWorkers)
	}
	if c.Fetcher.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("fetcher.max_requests_per_second must not be negative")
	}
	if c.Exteriors.File == "" {
		return fmt.Errorf("exteriors.file must be set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("exteriors.file", "exteriors.csv")
	v.SetDefault("exteriors.selectors", 6)

	v.SetDefault("fetcher.output_dir", ".")
	v.SetDefault("fetcher.timeout", 30)
	v.SetDefault("fetcher.max_workers", 1)
	v.SetDefault("fetcher.max_requests_per_second", 0)
	v.SetDefault("fetcher.failure_policy", FailurePolicyAbort)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("fetcher.proxies", []string{})
	v.SetDefault("fetcher.proxy_test_url", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "carpics_fetchers")
	v.SetDefault("redis.stream_prefix", "carpics:stream:")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.block_timeout", 5)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "carpics")
	v.SetDefault("database.user", "carpics")
	v.SetDefault("database.password", "carpics")
}
