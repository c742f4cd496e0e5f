package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad_Defaults(t *testing.T) {
	// Load config without a file - should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Check defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, ModeCRUD, cfg.Store.Mode)
	assert.Equal(t, "tenants", cfg.Store.Namespace)
	assert.Equal(t, "./seed.json", cfg.Store.SeedPath)
	assert.False(t, cfg.Store.WatchSeed)
	assert.Equal(t, time.Second, cfg.Store.FlushDelay)

	assert.Equal(t, BackendS3, cfg.Blob.Backend)
	assert.Equal(t, "localhost:9000", cfg.Blob.S3.Endpoint)
	assert.Equal(t, "docstore", cfg.Blob.S3.Bucket)
	assert.Empty(t, cfg.Blob.S3.SecretKey)
	assert.Equal(t, 5432, cfg.Blob.Postgres.Port)
	assert.Empty(t, cfg.Blob.Postgres.Password)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)

	assert.False(t, cfg.Throttle.Enabled)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfigLoad_FromEnvironment(t *testing.T) {
	// Set environment variables
	os.Setenv("DOCSTORE_SERVER_PORT", "9000")
	os.Setenv("DOCSTORE_STORE_MODE", "read")
	os.Setenv("DOCSTORE_STORE_FLUSH_DELAY", "2500ms")
	os.Setenv("DOCSTORE_BLOB_S3_SECRET_KEY", "env-only-secret")
	os.Setenv("DOCSTORE_BLOB_POSTGRES_PASSWORD", "env-only-password")
	defer func() {
		os.Unsetenv("DOCSTORE_SERVER_PORT")
		os.Unsetenv("DOCSTORE_STORE_MODE")
		os.Unsetenv("DOCSTORE_STORE_FLUSH_DELAY")
		os.Unsetenv("DOCSTORE_BLOB_S3_SECRET_KEY")
		os.Unsetenv("DOCSTORE_BLOB_POSTGRES_PASSWORD")
	}()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ModeRead, cfg.Store.Mode)
	assert.True(t, cfg.ReadOnly())
	assert.Equal(t, 2500*time.Millisecond, cfg.Store.FlushDelay)
	assert.Equal(t, "env-only-secret", cfg.Blob.S3.SecretKey)
	assert.Equal(t, "env-only-password", cfg.Blob.Postgres.Password)
}

func TestConfigLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 8181
store:
  mode: crud
  namespace: fixtures
  seed_path: ./testdata/seed.yaml
  flush_delay: 250ms
blob:
  backend: memory
rate_limit:
  enabled: true
  max_requests: 5
  window: 10s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "fixtures", cfg.Store.Namespace)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.FlushDelay)
	assert.Equal(t, BackendMemory, cfg.Blob.Backend)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)

	// Unset keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestConfigLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Mode:       ModeCRUD,
			Namespace:  "tenants",
			SeedPath:   "./seed.json",
			FlushDelay: time.Second,
		},
		Blob: BlobConfig{Backend: BackendMemory},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 30,
			Window:      time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "bad server port",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown mode",
			mutate:  func(cfg *Config) { cfg.Store.Mode = "readonly" },
			wantErr: "invalid store mode",
		},
		{
			name:    "empty namespace",
			mutate:  func(cfg *Config) { cfg.Store.Namespace = "" },
			wantErr: "namespace is required",
		},
		{
			name:    "empty seed path",
			mutate:  func(cfg *Config) { cfg.Store.SeedPath = "" },
			wantErr: "seed path is required",
		},
		{
			name:    "zero flush delay",
			mutate:  func(cfg *Config) { cfg.Store.FlushDelay = 0 },
			wantErr: "flush delay must be positive",
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.Blob.Backend = "gcs" },
			wantErr: "invalid blob backend",
		},
		{
			name: "unknown backend tolerated in read mode",
			mutate: func(cfg *Config) {
				cfg.Store.Mode = ModeRead
				cfg.Blob.Backend = "gcs"
			},
		},
		{
			name:    "rate limit zero requests",
			mutate:  func(cfg *Config) { cfg.RateLimit.MaxRequests = 0 },
			wantErr: "max requests must be positive",
		},
		{
			name: "rate limit disabled skips checks",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = false
				cfg.RateLimit.MaxRequests = 0
			},
		},
		{
			name: "throttle zero rps",
			mutate: func(cfg *Config) {
				cfg.Throttle.Enabled = true
				cfg.Throttle.RequestsPerSecond = 0
			},
			wantErr: "requests per second must be positive",
		},
		{
			name:    "bad metrics port",
			mutate:  func(cfg *Config) { cfg.Metrics.Port = -1 },
			wantErr: "invalid metrics port",
		},
		{
			name: "file output without path",
			mutate: func(cfg *Config) {
				cfg.Logging.Output = "file"
			},
			wantErr: "logging file path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
