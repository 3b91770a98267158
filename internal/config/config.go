package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// DispatchConfig holds the matching and lifecycle tunables.
type DispatchConfig struct {
	// FeeRate is the platform commission on finalPrice.
	FeeRate float64 `mapstructure:"fee_rate"`
	// MinutesPerKm converts live distance to an ETA estimate.
	MinutesPerKm float64 `mapstructure:"minutes_per_km"`
	// DefaultETAMinutes is returned when live coordinates are missing.
	DefaultETAMinutes int `mapstructure:"default_eta_minutes"`
	// MinETAMinutes floors any computed estimate.
	MinETAMinutes int `mapstructure:"min_eta_minutes"`
	// AutoAdvanceDelay is the simulated progression delay between
	// automatic lifecycle steps. Zero disables auto-advance.
	AutoAdvanceDelay time.Duration `mapstructure:"auto_advance_delay"`
	// MetricsCacheTTL bounds staleness of the dashboard snapshot.
	MetricsCacheTTL time.Duration `mapstructure:"metrics_cache_ttl"`
}

type WorkerConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MetricsPort   int           `mapstructure:"metrics_port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.rate_limit", 100)
	viper.SetDefault("server.rate_burst", 200)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("dispatch.fee_rate", 0.15)
	viper.SetDefault("dispatch.minutes_per_km", 2.0)
	viper.SetDefault("dispatch.default_eta_minutes", 15)
	viper.SetDefault("dispatch.min_eta_minutes", 5)
	viper.SetDefault("dispatch.auto_advance_delay", "5s")
	viper.SetDefault("dispatch.metrics_cache_ttl", "30s")

	viper.SetDefault("worker.batch_size", 50)
	viper.SetDefault("worker.poll_interval", "1s")
	viper.SetDefault("worker.retry_attempts", 3)
	viper.SetDefault("worker.retry_delay", "1s")
	viper.SetDefault("worker.metrics_port", 9090)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)
}
