package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Scheduler.Concurrency = 4
	cfg.Scheduler.JobTimeout = 30 * time.Second
	cfg.Scheduler.Retention = 24 * time.Hour
	cfg.Scheduler.PersistenceEnabled = true
	cfg.Storage.Driver = "file"
	cfg.Storage.Dir = "data/jobs"
	cfg.Payment.Address = "0x000000000000000000000000000000000000dEaD"
	cfg.Pricing.DefaultTier = "basic"
	cfg.Pricing.Tiers = map[string]float64{"basic": 0.05, "standard": 0.10, "complex": 0.25}
	cfg.RateLimit.Backend = "memory"
	cfg.RateLimit.Window = time.Minute
	cfg.RateLimit.IPLimit = 30
	cfg.RateLimit.WalletLimit = 10
	return cfg
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid_config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Retention)
	assert.True(t, cfg.Scheduler.PersistenceEnabled)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, 0.05, cfg.Pricing.Tiers["basic"])
	assert.Equal(t, 30, cfg.RateLimit.IPLimit)
	assert.Equal(t, "development", cfg.App.Environment)

	// Values omitted from the file pick up defaults.
	assert.Equal(t, time.Second, cfg.Scheduler.DrainInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.RetentionSweep)
	assert.Equal(t, 10*time.Minute, cfg.Payment.FreshnessWindow)
	assert.Equal(t, 5*time.Minute, cfg.Payment.CacheTTL)
	assert.Equal(t, "1", cfg.Payment.ProtocolVersion)

	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does_not_exist.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(filepath.Join("testdata", "malformed.yaml"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero concurrency",
			mutate:  func(cfg *Config) { cfg.Scheduler.Concurrency = 0 },
			wantErr: "concurrency must be greater than 0",
		},
		{
			name:    "zero job timeout",
			mutate:  func(cfg *Config) { cfg.Scheduler.JobTimeout = 0 },
			wantErr: "job_timeout must be greater than 0",
		},
		{
			name:    "zero retention",
			mutate:  func(cfg *Config) { cfg.Scheduler.Retention = 0 },
			wantErr: "retention must be greater than 0",
		},
		{
			name:    "file driver without dir",
			mutate:  func(cfg *Config) { cfg.Storage.Dir = "" },
			wantErr: "storage dir is required",
		},
		{
			name: "postgres driver without host",
			mutate: func(cfg *Config) {
				cfg.Storage.Driver = "postgres"
			},
			wantErr: "postgres host is required",
		},
		{
			name: "postgres driver without database",
			mutate: func(cfg *Config) {
				cfg.Storage.Driver = "postgres"
				cfg.Storage.Postgres.Host = "localhost"
				cfg.Storage.Postgres.Port = 5432
			},
			wantErr: "postgres database name is required",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = "dynamo" },
			wantErr: "unknown storage driver",
		},
		{
			name: "storage ignored when persistence disabled",
			mutate: func(cfg *Config) {
				cfg.Scheduler.PersistenceEnabled = false
				cfg.Storage.Driver = ""
				cfg.Storage.Dir = ""
			},
		},
		{
			name:    "missing payment address",
			mutate:  func(cfg *Config) { cfg.Payment.Address = "" },
			wantErr: "payment address is required",
		},
		{
			name: "redis backend without addr",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Backend = "redis"
			},
			wantErr: "redis addr is required",
		},
		{
			name:    "unknown ratelimit backend",
			mutate:  func(cfg *Config) { cfg.RateLimit.Backend = "memcached" },
			wantErr: "unknown ratelimit backend",
		},
		{
			name:    "zero ip limit",
			mutate:  func(cfg *Config) { cfg.RateLimit.IPLimit = 0 },
			wantErr: "rate limits must be greater than 0",
		},
		{
			name:    "empty pricing table",
			mutate:  func(cfg *Config) { cfg.Pricing.Tiers = nil },
			wantErr: "pricing tiers table is required",
		},
		{
			name:    "default tier not priced",
			mutate:  func(cfg *Config) { cfg.Pricing.DefaultTier = "premium" },
			wantErr: `default tier "premium" is not in the pricing table`,
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
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
