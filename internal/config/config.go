// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"ARENA_HOST" yaml:"host"`
	Port int    `envconfig:"ARENA_PORT" yaml:"port"`

	// Reference data configuration
	Data DataConfig `yaml:"data"`

	// Report cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// DataConfig locates the gold annotations and baseline results. Locations
// are file paths or http(s) URLs.
type DataConfig struct {
	Gold           string        `envconfig:"ARENA_GOLD" yaml:"gold"`
	Baselines      string        `envconfig:"ARENA_BASELINES" yaml:"baselines"` // empty = none
	FetchTimeout   time.Duration `envconfig:"ARENA_FETCH_TIMEOUT" yaml:"fetch_timeout"`
	MaxUploadBytes int64         `envconfig:"ARENA_MAX_UPLOAD_BYTES" yaml:"max_upload_bytes"`
}

// CacheConfig holds report cache settings.
type CacheConfig struct {
	Type     string        `envconfig:"ARENA_CACHE_TYPE" yaml:"type"`
	Size     int           `envconfig:"ARENA_CACHE_SIZE" yaml:"size"`
	TTL      time.Duration `envconfig:"ARENA_CACHE_TTL" yaml:"ttl"`
	RedisURL string        `envconfig:"ARENA_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type             string `envconfig:"ARENA_BUS_TYPE" yaml:"type"`
	KafkaBrokers     string `envconfig:"ARENA_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup       string `envconfig:"ARENA_KAFKA_GROUP" yaml:"kafka_group"`
	KafkaTopicPrefix string `envconfig:"ARENA_KAFKA_TOPIC_PREFIX" yaml:"kafka_topic_prefix"`
	JournalPath      string `envconfig:"ARENA_EVENT_JOURNAL" yaml:"journal_path"` // empty = disabled
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"ARENA_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"ARENA_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   float64 `envconfig:"ARENA_RATE_LIMIT" yaml:"rate_limit"` // requests/s per client, 0 = disabled
	RateBurst   int     `envconfig:"ARENA_RATE_BURST" yaml:"rate_burst"`
	CORSOrigins string  `envconfig:"ARENA_CORS_ORIGINS" yaml:"cors_origins"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	MetricsEnabled     bool    `envconfig:"ARENA_METRICS_ENABLED" yaml:"metrics_enabled"`
	MetricsPath        string  `envconfig:"ARENA_METRICS_PATH" yaml:"metrics_path"`
	TracingEnabled     bool    `envconfig:"ARENA_TRACING_ENABLED" yaml:"tracing_enabled"`
	TracingSampleRatio float64 `envconfig:"ARENA_TRACING_SAMPLE_RATIO" yaml:"tracing_sample_ratio"`
	RecentEvaluations  int     `envconfig:"ARENA_RECENT_EVALUATIONS" yaml:"recent_evaluations"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, in increasing priority.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
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

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 8080,
		Data: DataConfig{
			Gold:           "crs_arena_eval.json",
			Baselines:      "baselines.json",
			FetchTimeout:   30 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Cache: CacheConfig{
			Type:     "memory",
			Size:     256,
			TTL:      24 * time.Hour,
			RedisURL: "redis://localhost:6379",
		},
		Bus: BusConfig{
			Type:       "memory",
			KafkaGroup: "arena-eval",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Security: SecurityConfig{
			RateLimit:   5,
			RateBurst:   10,
			CORSOrigins: "*",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:     true,
			MetricsPath:        "/metrics",
			TracingEnabled:     false,
			TracingSampleRatio: 1,
			RecentEvaluations:  1000,
		},
	}
}

// Validate validates the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if strings.TrimSpace(c.Data.Gold) == "" {
		errs = append(errs, "gold location is required")
	}
	if c.Data.FetchTimeout <= 0 {
		errs = append(errs, "fetch_timeout must be positive")
	}
	if c.Data.MaxUploadBytes < 1 {
		errs = append(errs, "max_upload_bytes must be positive")
	}

	validCacheTypes := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory, redis, or none)", c.Cache.Type))
	}
	if c.Cache.Type == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, "redis_url is required for the redis cache")
	}
	if c.Cache.Size < 0 {
		errs = append(errs, "cache size must not be negative")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Security.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}
	if c.Security.RateLimit > 0 && c.Security.RateBurst < 1 {
		errs = append(errs, "rate_burst must be positive when rate limiting is enabled")
	}

	if c.Observability.MetricsEnabled && !strings.HasPrefix(c.Observability.MetricsPath, "/") {
		errs = append(errs, "metrics_path must start with /")
	}
	if r := c.Observability.TracingSampleRatio; r < 0 || r > 1 {
		errs = append(errs, "tracing_sample_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
