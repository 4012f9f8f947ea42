package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIOrg     string

	S3Bucket        string
	AWSRegion       string
	StoragePath     string
	SignedURLExpiry time.Duration

	QueueName         string
	WorkerConcurrency int
	WebhookURL        string
	WebhookToken      string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Keys every binary needs are validated here;
// binary-specific requirements are checked by RequireAPI/RequireWorker
// so a missing value fails at boot rather than mid-request.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:         os.Getenv("OPENAI_ORG"),
		S3Bucket:          os.Getenv("AWS_S3_BUCKET"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		StoragePath:       os.Getenv("STORAGE_PATH"),
		SignedURLExpiry:   time.Second * time.Duration(getEnvInt("SIGNED_URL_EXPIRY_SECONDS", 3600)),
		QueueName:         getEnv("QUEUE_NAME", "texture:jobs"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookToken:      os.Getenv("WEBHOOK_TOKEN"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSOrigins:       []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

// RequireAPI validates the settings the API binary cannot start without.
func (c *Config) RequireAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.WebhookToken == "" {
		return fmt.Errorf("WEBHOOK_TOKEN is required")
	}
	return nil
}

// RequireWorker validates the settings the worker binary cannot start without.
func (c *Config) RequireWorker() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required")
	}
	if c.WebhookToken == "" {
		return fmt.Errorf("WEBHOOK_TOKEN is required")
	}
	return c.RequireStorage()
}

// RequireStorage validates object storage settings. A filesystem
// STORAGE_PATH satisfies it for development; otherwise the S3 bucket
// and region must both be present.
func (c *Config) RequireStorage() error {
	if c.StoragePath != "" {
		return nil
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("AWS_S3_BUCKET is required")
	}
	if c.AWSRegion == "" {
		return fmt.Errorf("AWS_REGION is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
