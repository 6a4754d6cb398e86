// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the full service configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	LastFM    LastFMConfig    `mapstructure:"lastfm"`
	Spotify   SpotifyConfig   `mapstructure:"spotify"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type LastFMConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
}

// SpotifyConfig is optional. Without credentials, listening time falls back
// to the default track length.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_with=ClientID"`
}

// Enabled reports whether Spotify credentials are configured.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type CacheConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=memory redis none"`
	SizeMB   int    `mapstructure:"size_mb" validate:"min=1"`
	RedisURL string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
}

type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"min=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration. path may point to a YAML file; an empty path
// skips the file. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("lastfm.api_key", "")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.size_mb", 64)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("scheduler.interval", 15*time.Minute)
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.enabled", true)
}
