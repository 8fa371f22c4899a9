// Package config defines the top-level configuration for the trading
// backend and provides validation helpers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by OPINIX_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Feed     FeedConfig     `toml:"feed"`
}

// ServerConfig holds HTTP listener parameters.
type ServerConfig struct {
	Port string `toml:"port"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL           string `toml:"url"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty URL disables the
// cache and the distributed settlement lock.
type RedisConfig struct {
	URL      string        `toml:"url"`
	CacheTTL time.Duration `toml:"cache_ttl"`
	LockTTL  time.Duration `toml:"lock_ttl"`
}

// AuthConfig holds token signing parameters.
type AuthConfig struct {
	Secret   string        `toml:"secret"`
	TokenTTL time.Duration `toml:"token_ttl"`
}

// FeedConfig holds external event feed parameters. An empty base URL
// selects the built-in static fixtures; an empty cron spec disables
// polling.
type FeedConfig struct {
	BaseURL  string `toml:"base_url"`
	CronSpec string `toml:"cron_spec"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			RunMigrations: true,
		},
		Redis: RedisConfig{
			CacheTTL: 30 * time.Second,
			LockTTL:  30 * time.Second,
		},
		Auth: AuthConfig{
			Secret:   "opinion-trading-secret",
			TokenTTL: 7 * 24 * time.Hour,
		},
		Feed: FeedConfig{
			CronSpec: "*/15 * * * *",
		},
	}
}

// Load reads a TOML configuration file at path (skipped when path is
// empty), merges it on top of the built-in defaults, applies OPINIX_*
// environment variable overrides, and returns the final Config.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPINIX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Port, "OPINIX_PORT")
	setStr(&cfg.Server.Port, "PORT") // compatibility alias

	setStr(&cfg.Database.URL, "OPINIX_DATABASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL") // compatibility alias
	setBool(&cfg.Database.RunMigrations, "OPINIX_DATABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.URL, "OPINIX_REDIS_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL") // compatibility alias

	setStr(&cfg.Auth.Secret, "OPINIX_AUTH_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "OPINIX_AUTH_TOKEN_TTL")

	setStr(&cfg.Feed.BaseURL, "OPINIX_FEED_BASE_URL")
	setStr(&cfg.Feed.CronSpec, "OPINIX_FEED_CRON_SPEC")
}

// Validate checks the configuration for values the process cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("config: auth secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth token TTL must be positive")
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
