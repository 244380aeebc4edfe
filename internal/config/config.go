package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Payment   PaymentConfig   `yaml:"payment"`
	Pricing   PricingConfig   `yaml:"pricing"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SchedulerConfig holds worker pool and retention configuration
type SchedulerConfig struct {
	Concurrency        int           `yaml:"concurrency"`
	JobTimeout         time.Duration `yaml:"job_timeout"`
	DrainInterval      time.Duration `yaml:"drain_interval"`
	Retention          time.Duration `yaml:"retention"`
	RetentionSweep     time.Duration `yaml:"retention_sweep_interval"`
	PersistenceEnabled bool          `yaml:"persistence_enabled"`
}

// StorageConfig selects and configures the job store backend
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // file or postgres
	Dir      string         `yaml:"dir"`    // file driver only
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// PaymentConfig holds x402 payment verification settings
type PaymentConfig struct {
	Address         string        `yaml:"address"` // treasury address challenges point at
	Token           string        `yaml:"token"`
	Network         string        `yaml:"network"`
	Currency        string        `yaml:"currency"`
	Facilitator     string        `yaml:"facilitator"`
	ProtocolVersion string        `yaml:"protocol_version"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	// AllowUnverified accepts any structurally valid proof without an
	// authoritative on-chain check. Ignored when app.environment is
	// "production".
	AllowUnverified bool `yaml:"allow_unverified"`
}

// PricingConfig holds the tier price table
type PricingConfig struct {
	DefaultTier string             `yaml:"default_tier"`
	Tiers       map[string]float64 `yaml:"tiers"`
}

// RateLimitConfig holds the fixed-window rate limiter settings
type RateLimitConfig struct {
	Backend     string        `yaml:"backend"` // memory or redis
	Window      time.Duration `yaml:"window"`
	IPLimit     int           `yaml:"ip_limit"`
	WalletLimit int           `yaml:"wallet_limit"`
	Redis       RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebhookConfig holds outbound webhook delivery settings
type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills in values that may be omitted from the file
func (c *Config) applyDefaults() {
	if c.Scheduler.DrainInterval <= 0 {
		c.Scheduler.DrainInterval = time.Second
	}
	if c.Scheduler.RetentionSweep <= 0 {
		c.Scheduler.RetentionSweep = time.Hour
	}
	if c.Payment.FreshnessWindow <= 0 {
		c.Payment.FreshnessWindow = 10 * time.Minute
	}
	if c.Payment.CacheTTL <= 0 {
		c.Payment.CacheTTL = 5 * time.Minute
	}
	if c.Payment.ProtocolVersion == "" {
		c.Payment.ProtocolVersion = "1"
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Pricing.DefaultTier == "" {
		c.Pricing.DefaultTier = "basic"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("scheduler concurrency must be greater than 0")
	}

	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("scheduler job_timeout must be greater than 0")
	}

	if c.Scheduler.Retention <= 0 {
		return fmt.Errorf("scheduler retention must be greater than 0")
	}

	if c.Scheduler.PersistenceEnabled {
		switch c.Storage.Driver {
		case "file":
			if c.Storage.Dir == "" {
				return fmt.Errorf("storage dir is required for the file driver")
			}
		case "postgres":
			if c.Storage.Postgres.Host == "" {
				return fmt.Errorf("postgres host is required")
			}
			if c.Storage.Postgres.Port < MinPort || c.Storage.Postgres.Port > MaxPort {
				return fmt.Errorf("invalid postgres port: %d (must be between %d and %d)", c.Storage.Postgres.Port, MinPort, MaxPort)
			}
			if c.Storage.Postgres.Database == "" {
				return fmt.Errorf("postgres database name is required")
			}
		default:
			return fmt.Errorf("unknown storage driver: %q (must be file or postgres)", c.Storage.Driver)
		}
	}

	if c.Payment.Address == "" {
		return fmt.Errorf("payment address is required")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unknown ratelimit backend: %q (must be memory or redis)", c.RateLimit.Backend)
	}

	if c.RateLimit.IPLimit <= 0 || c.RateLimit.WalletLimit <= 0 {
		return fmt.Errorf("rate limits must be greater than 0")
	}

	if len(c.Pricing.Tiers) == 0 {
		return fmt.Errorf("pricing tiers table is required")
	}

	if _, ok := c.Pricing.Tiers[c.Pricing.DefaultTier]; !ok {
		return fmt.Errorf("default tier %q is not in the pricing table", c.Pricing.DefaultTier)
	}

	return nil
}
