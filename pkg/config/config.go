package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Environment variables are read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Upstream data sources
	Upstream UpstreamConfig

	// Sync engine
	Sync SyncConfig

	// Strategy file (weights, thresholds, universe)
	StrategyPath string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// UpstreamConfig holds market data source configuration
type UpstreamConfig struct {
	EastmoneyBaseURL string
	TencentBaseURL   string
	Timeout          time.Duration
	RatePerSecond    int // local token bucket per source
}

// SyncConfig holds incremental sync engine configuration
type SyncConfig struct {
	Interval     time.Duration // collector cycle interval
	Workers      int           // worker pool size, independent of universe size
	HistoryDays  int           // bounded full-history window for cold instruments
	MaxAttempts  int           // retry ceiling per upstream call
	BackoffBase  time.Duration // first retry delay
	FetchTimeout time.Duration // per (instrument, period) sync deadline
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Upstream: UpstreamConfig{
			EastmoneyBaseURL: getEnv("EASTMONEY_BASE_URL", "https://push2his.eastmoney.com"),
			TencentBaseURL:   getEnv("TENCENT_BASE_URL", "https://web.ifzq.gtimg.cn"),
			Timeout:          getEnvAsDuration("UPSTREAM_TIMEOUT", "15s"),
			RatePerSecond:    getEnvAsInt("UPSTREAM_RATE_PER_SECOND", 5),
		},

		Sync: SyncConfig{
			Interval:     getEnvAsDuration("SYNC_INTERVAL", "10m"),
			Workers:      getEnvAsInt("SYNC_WORKERS", 4),
			HistoryDays:  getEnvAsInt("SYNC_HISTORY_DAYS", 1095),
			MaxAttempts:  getEnvAsInt("SYNC_MAX_ATTEMPTS", 3),
			BackoffBase:  getEnvAsDuration("SYNC_BACKOFF_BASE", "500ms"),
			FetchTimeout: getEnvAsDuration("SYNC_FETCH_TIMEOUT", "30s"),
		},

		StrategyPath: getEnv("STRATEGY_PATH", "configs/strategy.yaml"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Sync.Workers <= 0 {
		return fmt.Errorf("SYNC_WORKERS must be positive")
	}

	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
