package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Workflow      WorkflowConfig
	Notifications NotificationsConfig
	Cache         CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig tunes the action outbox drain worker.
type WorkflowConfig struct {
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	WorkerConcurrency  int
	WorkerRetries      int
	MaxAttempts        int
	ClaimLease         time.Duration
}

// NotificationsConfig controls the notification delivery worker.
type NotificationsConfig struct {
	Enabled      bool
	FromAddress  string
	ResendAPIKey string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	ClaimLease   time.Duration
}

// CacheConfig governs entity read caching.
type CacheConfig struct {
	Enabled   bool
	EntityTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		OutboxPollInterval: parseDuration(v.GetString("WORKFLOW_OUTBOX_POLL_INTERVAL"), 5*time.Second),
		OutboxBatchSize:    v.GetInt("WORKFLOW_OUTBOX_BATCH_SIZE"),
		WorkerConcurrency:  v.GetInt("WORKFLOW_WORKER_CONCURRENCY"),
		WorkerRetries:      v.GetInt("WORKFLOW_WORKER_RETRIES"),
		MaxAttempts:        v.GetInt("WORKFLOW_OUTBOX_MAX_ATTEMPTS"),
		ClaimLease:         parseDuration(v.GetString("WORKFLOW_OUTBOX_CLAIM_LEASE"), 2*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:      v.GetBool("ENABLE_NOTIFICATIONS"),
		FromAddress:  v.GetString("NOTIFICATIONS_FROM_ADDRESS"),
		ResendAPIKey: v.GetString("RESEND_API_KEY"),
		PollInterval: parseDuration(v.GetString("NOTIFICATIONS_POLL_INTERVAL"), 10*time.Second),
		BatchSize:    v.GetInt("NOTIFICATIONS_BATCH_SIZE"),
		MaxAttempts:  v.GetInt("NOTIFICATIONS_MAX_ATTEMPTS"),
		ClaimLease:   parseDuration(v.GetString("NOTIFICATIONS_CLAIM_LEASE"), 2*time.Minute),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_ENTITY_CACHE"),
		EntityTTL: parseDuration(v.GetString("ENTITY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "repair_workflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("WORKFLOW_OUTBOX_BATCH_SIZE", 20)
	v.SetDefault("WORKFLOW_WORKER_CONCURRENCY", 2)
	v.SetDefault("WORKFLOW_WORKER_RETRIES", 3)
	v.SetDefault("WORKFLOW_OUTBOX_MAX_ATTEMPTS", 5)
	v.SetDefault("WORKFLOW_OUTBOX_CLAIM_LEASE", "2m")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFICATIONS_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("NOTIFICATIONS_POLL_INTERVAL", "10s")
	v.SetDefault("NOTIFICATIONS_BATCH_SIZE", 50)
	v.SetDefault("NOTIFICATIONS_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFICATIONS_CLAIM_LEASE", "2m")

	v.SetDefault("ENABLE_ENTITY_CACHE", false)
	v.SetDefault("ENTITY_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
