package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML keys to Go struct fields.
type Config struct {
	Server struct {
		Port            int           `mapstructure:"port"`
		BaseURL         string        `mapstructure:"base_url"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	// Database configuration section for SQLite settings
	Database struct {
		Name         string `mapstructure:"name"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
	} `mapstructure:"database"`

	Shortener struct {
		CodeLength  int `mapstructure:"code_length"`
		MaxAttempts int `mapstructure:"max_attempts"`
	} `mapstructure:"shortener"`

	// Analytics configuration for asynchronous click tracking and report fan-out
	Analytics struct {
		BufferSize           int           `mapstructure:"buffer_size"`
		WorkerCount          int           `mapstructure:"worker_count"`
		RecordTimeout        time.Duration `mapstructure:"record_timeout"`
		EnrichTimeout        time.Duration `mapstructure:"enrich_timeout"`
		MaxConcurrentQueries int           `mapstructure:"max_concurrent_queries"`
	} `mapstructure:"analytics"`

	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
	} `mapstructure:"monitor"`

	// Geo configuration: provider credentials, per-attempt timeout and guard settings.
	// Providers without a credential are skipped by the chain.
	Geo struct {
		Timeout          time.Duration `mapstructure:"timeout"`
		IPGeolocationKey string        `mapstructure:"ipgeolocation_key"`
		IPStackKey       string        `mapstructure:"ipstack_key"`
		RequestsPerMin   int           `mapstructure:"requests_per_minute"`
		BreakerFailures  int           `mapstructure:"breaker_failures"`
		BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
		CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"geo"`

	// Redis is optional; an empty address disables both caches.
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		LinkTTL  time.Duration `mapstructure:"link_ttl"`
	} `mapstructure:"redis"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`

	Log struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
}

// LoadConfig loads the application configuration using Viper.
// A .env file, when present, is loaded into the process environment first,
// then configs/config.yaml, then environment variables override both.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Debug().Msg("Loaded environment from .env")
	}

	// e.g., "server.port" becomes "SERVER_PORT"
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.Info().Msg("Config file not found, using default values")
		} else {
			return nil, customerrors.ErrConfigLoad{Path: "configs/config.yaml", Reason: err.Error()}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	logging.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Name).
		Int("buffer_size", cfg.Analytics.BufferSize).
		Int("workers", cfg.Analytics.WorkerCount).
		Bool("redis", cfg.Redis.Addr != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("database.name", "clicktrail.db")
	viper.SetDefault("database.max_open_conns", 4)

	viper.SetDefault("shortener.code_length", 8)
	viper.SetDefault("shortener.max_attempts", 100)

	viper.SetDefault("analytics.buffer_size", 1000)
	viper.SetDefault("analytics.worker_count", 5)
	viper.SetDefault("analytics.record_timeout", 20*time.Second)
	viper.SetDefault("analytics.enrich_timeout", 15*time.Second)
	viper.SetDefault("analytics.max_concurrent_queries", 6)

	viper.SetDefault("monitor.interval_minutes", 5)

	viper.SetDefault("geo.timeout", 5*time.Second)
	viper.SetDefault("geo.ipgeolocation_key", "")
	viper.SetDefault("geo.ipstack_key", "")
	viper.SetDefault("geo.requests_per_minute", 45)
	viper.SetDefault("geo.breaker_failures", 5)
	viper.SetDefault("geo.breaker_cooldown", time.Minute)
	viper.SetDefault("geo.cache_ttl", 24*time.Hour)

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.link_ttl", time.Hour)

	viper.SetDefault("auth.jwt_secret", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
}
