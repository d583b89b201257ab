package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	MinioEndpoint       string `env:"MINIO_ENDPOINT,default=localhost:9000"`
	MinioAccessKey      string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string `env:"MINIO_SECRET_KEY"`
	MinioBucket         string `env:"MINIO_BUCKET,default=work-items"`
	MinioUseSSL         bool   `env:"MINIO_USE_SSL,default=false"`
	WebhookURL          string `env:"WEBHOOK_URL"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=20"`
	WebhookRatePerSec   int    `env:"WEBHOOK_RATE_PER_SEC,default=10"`
	WorkerConcurrency   int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort             int    `env:"API_PORT,default=8080"`
	WorkerPort          int    `env:"WORKER_PORT,default=8081"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	MaxUploadBytes      int64  `env:"MAX_UPLOAD_BYTES,default=20971520"`
	DBMaxOpenConns      int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns      int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConsumerPrefetch    int    `env:"CONSUMER_PREFETCH,default=10"`
	MaxDeliveryAttempts int    `env:"MAX_DELIVERY_ATTEMPTS,default=10"`
	AuditIntervalSec    int    `env:"AUDIT_INTERVAL_SEC,default=60"`
	ShutdownTimeout     int    `env:"SHUTDOWN_TIMEOUT_SEC,default=10"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.RateLimitPerSec <= 0 {
		return nil, fmt.Errorf("failed to load config: RATE_LIMIT_PER_SEC must be positive, got %d", cfg.RateLimitPerSec)
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, fmt.Errorf("failed to load config: WORKER_CONCURRENCY must be positive, got %d", cfg.WorkerConcurrency)
	}
	if cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		return nil, fmt.Errorf("failed to load config: DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)", cfg.DBMaxIdleConns, cfg.DBMaxOpenConns)
	}
	return &cfg, nil
}

// NotificationsEnabled reports whether the worker forwards activity to a webhook.
func (c *Config) NotificationsEnabled() bool {
	return c.WebhookURL != ""
}
