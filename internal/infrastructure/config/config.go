package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// loaded from environment variables, no magic defaults for required fields.
type Config struct {
	// Storage selects the repository backend: "postgres" or "memory".
	Storage     string
	Database    DatabaseConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Server      ServerConfig
	PrayerTimes PrayerTimesConfig
	Webhook     WebhookConfig
	LogLevel    string

	// ScoringPath points at the optional yaml tuning file.
	ScoringPath string
}

// DatabaseConfig contains database connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Schema   string

	// MaxConns caps the pool. each scoring cycle holds one connection
	// for its advisory lock and may borrow another for the transaction.
	MaxConns int
}

// AuthConfig contains authentication configuration.
type AuthConfig struct {
	// JWTSecret is the supabase jwt secret for token validation
	JWTSecret string
}

// RedisConfig enables the leaderboard and score cache when URL is set.
type RedisConfig struct {
	URL      string
	ScoreTTL time.Duration
}

// ServerConfig contains http server settings.
type ServerConfig struct {
	Port string

	// ComputeRate limits scoring requests per user and second. zero disables it.
	ComputeRate  float64
	ComputeBurst int
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// PrayerTimesConfig points at an aladhan-compatible timings api.
type PrayerTimesConfig struct {
	BaseURL           string
	Method            int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// WebhookConfig configures milestone delivery to the achievement evaluator.
// an empty URL disables delivery.
type WebhookConfig struct {
	URL    string
	Secret string
}

// ConnectionString returns the postgres connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
		c.Schema,
	)
}

// Load reads configuration from environment variables.
// loads .env file if present, but doesn't fail if it's missing.
// auth is validated separately by RequireAuth, the cli commands don't need it.
func Load() (*Config, error) {
	// try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	storage := getEnvOrDefault("STORAGE_DRIVER", StoragePostgres)
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, storage)
	}

	dbConfig, err := loadDatabaseConfig()
	if err != nil && storage == StoragePostgres {
		return nil, fmt.Errorf("database config: %w", err)
	}

	serverConfig, err := loadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	prayerConfig, err := loadPrayerTimesConfig()
	if err != nil {
		return nil, fmt.Errorf("prayer times config: %w", err)
	}

	redisConfig, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	webhookConfig := WebhookConfig{
		URL:    os.Getenv("MILESTONE_WEBHOOK_URL"),
		Secret: os.Getenv("MILESTONE_WEBHOOK_SECRET"),
	}
	if webhookConfig.URL != "" && webhookConfig.Secret == "" {
		return nil, errors.New("MILESTONE_WEBHOOK_SECRET is required when MILESTONE_WEBHOOK_URL is set")
	}

	return &Config{
		Storage:     storage,
		Database:    dbConfig,
		Auth:        AuthConfig{JWTSecret: os.Getenv("SUPABASE_JWT_SECRET")},
		Redis:       redisConfig,
		Server:      serverConfig,
		PrayerTimes: prayerConfig,
		Webhook:     webhookConfig,
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		ScoringPath: os.Getenv("SCORING_CONFIG_PATH"),
	}, nil
}

// RequireAuth fails when the http api cannot validate tokens.
func (c *Config) RequireAuth() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	config := DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  getEnvOrDefault("DB_SSL_MODE", "require"),
		Schema:   getEnvOrDefault("DB_SCHEMA", "spirit"),
	}

	maxConns, err := getIntOrDefault("DB_MAX_CONNS", 20)
	if err != nil {
		return config, err
	}
	if maxConns < 2 {
		return config, errors.New("DB_MAX_CONNS must be at least 2")
	}
	config.MaxConns = maxConns

	// required fields must be set
	if config.User == "" {
		return config, errors.New("DB_USER is required")
	}
	if config.Password == "" {
		return config, errors.New("DB_PASSWORD is required")
	}
	if config.Name == "" {
		return config, errors.New("DB_NAME is required")
	}

	return config, nil
}

func loadServerConfig() (ServerConfig, error) {
	rate, err := getFloatOrDefault("SCORES_RATE_LIMIT", 1)
	if err != nil {
		return ServerConfig{}, err
	}
	burst, err := getIntOrDefault("SCORES_RATE_BURST", 3)
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		ComputeRate:  rate,
		ComputeBurst: burst,
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	ttl, err := getDurationOrDefault("REDIS_SCORE_TTL", 10*time.Minute)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{
		URL:      os.Getenv("REDIS_URL"),
		ScoreTTL: ttl,
	}, nil
}

func loadPrayerTimesConfig() (PrayerTimesConfig, error) {
	method, err := getIntOrDefault("PRAYER_TIMES_METHOD", 2)
	if err != nil {
		return PrayerTimesConfig{}, err
	}
	burst, err := getIntOrDefault("PRAYER_TIMES_BURST", 5)
	if err != nil {
		return PrayerTimesConfig{}, err
	}
	rps, err := getFloatOrDefault("PRAYER_TIMES_RPS", 5)
	if err != nil {
		return PrayerTimesConfig{}, err
	}
	timeout, err := getDurationOrDefault("PRAYER_TIMES_TIMEOUT", 5*time.Second)
	if err != nil {
		return PrayerTimesConfig{}, err
	}

	return PrayerTimesConfig{
		BaseURL:           getEnvOrDefault("PRAYER_TIMES_URL", "https://api.aladhan.com/v1"),
		Method:            method,
		RequestsPerSecond: rps,
		Burst:             burst,
		Timeout:           timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
