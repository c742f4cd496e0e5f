// Package config provides configuration management for the document store.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store modes.
const (
	ModeCRUD = "crud"
	ModeRead = "read"
)

// Blob backends.
const (
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the document store.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Blob      BlobConfig      `mapstructure:"blob"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig holds document store behavior configuration.
type StoreConfig struct {
	Mode       string        `mapstructure:"mode"`
	Namespace  string        `mapstructure:"namespace"`
	SeedPath   string        `mapstructure:"seed_path"`
	WatchSeed  bool          `mapstructure:"watch_seed"`
	FlushDelay time.Duration `mapstructure:"flush_delay"`
}

// BlobConfig holds durable object storage configuration.
type BlobConfig struct {
	Backend  string         `mapstructure:"backend"`
	S3       S3Config       `mapstructure:"s3"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// S3Config holds S3-compatible object storage configuration. The secret
// key is supplied through DOCSTORE_BLOB_S3_SECRET_KEY, not the config file.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// PostgresConfig holds PostgreSQL object storage configuration. The
// password is supplied through DOCSTORE_BLOB_POSTGRES_PASSWORD, not the
// config file.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RateLimitConfig holds per-source sliding window rate limit configuration.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// ThrottleConfig holds process-wide throughput throttle configuration.
type ThrottleConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig holds rotating log file configuration, used when the
// logging output is "file".
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/docstore/")
	}

	// Read environment variables
	v.SetEnvPrefix("DOCSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Store defaults
	v.SetDefault("store.mode", ModeCRUD)
	v.SetDefault("store.namespace", "tenants")
	v.SetDefault("store.seed_path", "./seed.json")
	v.SetDefault("store.watch_seed", false)
	v.SetDefault("store.flush_delay", "1s")

	// Blob defaults
	v.SetDefault("blob.backend", BackendS3)
	v.SetDefault("blob.s3.endpoint", "localhost:9000")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.bucket", "docstore")
	v.SetDefault("blob.s3.access_key", "")
	v.SetDefault("blob.s3.secret_key", "")
	v.SetDefault("blob.s3.use_ssl", false)
	v.SetDefault("blob.postgres.host", "localhost")
	v.SetDefault("blob.postgres.port", 5432)
	v.SetDefault("blob.postgres.database", "docstore")
	v.SetDefault("blob.postgres.user", "docstore")
	v.SetDefault("blob.postgres.password", "")
	v.SetDefault("blob.postgres.ssl_mode", "disable")
	v.SetDefault("blob.postgres.max_conns", 10)
	v.SetDefault("blob.postgres.min_conns", 2)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window", "60s")

	// Throttle defaults
	v.SetDefault("throttle.enabled", false)
	v.SetDefault("throttle.requests_per_second", 1000.0)
	v.SetDefault("throttle.burst_size", 100)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 7)
	v.SetDefault("logging.file.compress", false)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Store.Mode != ModeCRUD && c.Store.Mode != ModeRead {
		return fmt.Errorf("invalid store mode: %q (must be %q or %q)", c.Store.Mode, ModeCRUD, ModeRead)
	}

	if c.Store.Namespace == "" {
		return fmt.Errorf("store namespace is required")
	}

	if c.Store.SeedPath == "" {
		return fmt.Errorf("store seed path is required")
	}

	if c.Store.FlushDelay <= 0 {
		return fmt.Errorf("store flush delay must be positive")
	}

	if c.Store.Mode == ModeCRUD {
		switch c.Blob.Backend {
		case BackendS3, BackendPostgres, BackendMemory:
		default:
			return fmt.Errorf("invalid blob backend: %q", c.Blob.Backend)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate limit max requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Throttle.Enabled {
		if c.Throttle.RequestsPerSecond <= 0 {
			return fmt.Errorf("throttle requests per second must be positive")
		}
		if c.Throttle.BurstSize <= 0 {
			return fmt.Errorf("throttle burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		return fmt.Errorf("logging file path is required when output is file")
	}

	return nil
}

// ReadOnly reports whether the store runs in read-only mode.
func (c *Config) ReadOnly() bool {
	return c.Store.Mode == ModeRead
}
