package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Internal InternalConfig `mapstructure:"internal"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Push     PushConfig     `mapstructure:"push"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrateURL returns the DSN in the form expected by the pgx/v5 migrate driver.
func (d DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// InternalConfig authenticates service-to-service calls (purchase verification,
// admin credits, job triggers) with an HMAC shared secret.
type InternalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	SharedSecret string `mapstructure:"shared_secret"`
}

type LedgerConfig struct {
	ExpirationDays int           `mapstructure:"expiration_days"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	OpTimeout      time.Duration `mapstructure:"op_timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
}

// Expiration returns the default lifetime of a newly credited batch.
func (l LedgerConfig) Expiration() time.Duration {
	return time.Duration(l.ExpirationDays) * 24 * time.Hour
}

type JobsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PageSize      int           `mapstructure:"page_size"`
	Workers       int           `mapstructure:"workers"`
	WarningWindow time.Duration `mapstructure:"warning_window"`
	CursorTTL     time.Duration `mapstructure:"cursor_ttl"`
	SweepAt       string        `mapstructure:"sweep_at"`     // HH:MM UTC, daily
	WarningsAt    string        `mapstructure:"warnings_at"`  // HH:MM UTC, daily
	AllowanceAt   string        `mapstructure:"allowance_at"` // HH:MM UTC, first day of month
}

type PushConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	ProjectID       string  `mapstructure:"project_id"`
	CredentialsFile string  `mapstructure:"credentials_file"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Burst           int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: COINLEDGER_.
// Nested keys use underscore: COINLEDGER_DATABASE_HOST, COINLEDGER_JOBS_WORKERS, etc.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "coin_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "coin-ledger")
	v.SetDefault("internal.client_id", "")
	v.SetDefault("internal.shared_secret", "")
	v.SetDefault("ledger.expiration_days", 365)
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.retry_base_delay", "20ms")
	v.SetDefault("ledger.op_timeout", "5s")
	v.SetDefault("ledger.idempotency_ttl", "24h")
	v.SetDefault("ledger.reservation_ttl", "30s")
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.page_size", 500)
	v.SetDefault("jobs.workers", 8)
	v.SetDefault("jobs.warning_window", "720h")
	v.SetDefault("jobs.cursor_ttl", "48h")
	v.SetDefault("jobs.sweep_at", "02:00")
	v.SetDefault("jobs.warnings_at", "10:00")
	v.SetDefault("jobs.allowance_at", "00:00")
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.rate_per_second", 50)
	v.SetDefault("push.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: COINLEDGER_DATABASE_HOST -> database.host
	v.SetEnvPrefix("COINLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required; env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Ledger.ExpirationDays <= 0 {
		return fmt.Errorf("ledger.expiration_days must be positive, got %d", c.Ledger.ExpirationDays)
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger.max_retries must be at least 1, got %d", c.Ledger.MaxRetries)
	}
	if c.Ledger.RetryBaseDelay < 0 {
		return fmt.Errorf("ledger.retry_base_delay must not be negative, got %s", c.Ledger.RetryBaseDelay)
	}
	if c.Ledger.OpTimeout <= 0 {
		return fmt.Errorf("ledger.op_timeout must be positive, got %s", c.Ledger.OpTimeout)
	}
	if c.Ledger.IdempotencyTTL <= 0 || c.Ledger.ReservationTTL <= 0 {
		return fmt.Errorf("ledger.idempotency_ttl and ledger.reservation_ttl must be positive")
	}
	if c.Jobs.PageSize <= 0 || c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.page_size and jobs.workers must be positive")
	}
	if c.Jobs.WarningWindow <= 0 {
		return fmt.Errorf("jobs.warning_window must be positive, got %s", c.Jobs.WarningWindow)
	}
	if c.Push.RatePerSecond <= 0 {
		return fmt.Errorf("push.rate_per_second must be positive, got %g", c.Push.RatePerSecond)
	}
	return nil
}
