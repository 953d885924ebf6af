package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/restockwatch/worker/internal/pkg/validate"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	OpsPort string

	AWSRegion      string `validate:"required"`
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	DynamoTables DynamoTables

	EventTopicARN string `validate:"required"`
	SMSSenderID   string // outbound SMS identity; the SMS channel is unconfigured without it

	QueueName           string `validate:"required"`
	DeadLetterQueueName string `validate:"required"`
	MaxDeliveryCount    int    `validate:"min=1"`
	VisibilitySeconds   int    `validate:"min=1"`
	DispatchConcurrency int    `validate:"min=1"`

	EventArchiveBucket string // optional: S3 bucket for the change-event reconciliation trail

	DefaultPollIntervalSeconds      int `validate:"min=1"`
	HighPriorityPollIntervalSeconds int `validate:"min=1"`
	PollConcurrency                 int `validate:"min=1"`
	CheckTimeoutSeconds             int `validate:"min=1"`
	SendTimeoutSeconds              int `validate:"min=1"`
	HistoryTTLDays                  int `validate:"min=1"`

	BestBuyAPIKey     string
	BestBuyRPS        float64
	BestBuyDailyLimit int
	WalmartAPIKey     string
	WalmartRPS        float64
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Products    string `validate:"required"`
	History     string `validate:"required"`
	Preferences string `validate:"required"`
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		OpsPort: getEnv("OPS_PORT", "8080"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		DynamoTables: DynamoTables{
			Products:    getEnv("DYNAMO_TABLE_PRODUCTS", "monitored_products"),
			History:     getEnv("DYNAMO_TABLE_HISTORY", "inventory_history"),
			Preferences: getEnv("DYNAMO_TABLE_PREFERENCES", "notification_preferences"),
		},

		EventTopicARN: getEnv("EVENT_TOPIC_ARN", ""),
		SMSSenderID:   getEnv("SMS_SENDER_ID", ""),

		QueueName:           getEnv("NOTIFICATION_QUEUE_NAME", "notification-requests"),
		DeadLetterQueueName: getEnv("NOTIFICATION_DLQ_NAME", "notification-requests-dlq"),
		MaxDeliveryCount:    getEnvInt("NOTIFICATION_MAX_DELIVERIES", 3),
		VisibilitySeconds:   getEnvInt("NOTIFICATION_VISIBILITY_SECONDS", 60),
		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 8),

		EventArchiveBucket: getEnv("EVENT_ARCHIVE_BUCKET", ""),

		DefaultPollIntervalSeconds:      getEnvInt("DEFAULT_POLL_INTERVAL_SECONDS", 10),
		HighPriorityPollIntervalSeconds: getEnvInt("HIGH_PRIORITY_POLL_INTERVAL_SECONDS", 5),
		PollConcurrency:                 getEnvInt("POLL_CONCURRENCY", 10),
		CheckTimeoutSeconds:             getEnvInt("CHECK_TIMEOUT_SECONDS", 8),
		SendTimeoutSeconds:              getEnvInt("SEND_TIMEOUT_SECONDS", 10),
		HistoryTTLDays:                  getEnvInt("HISTORY_TTL_DAYS", 90),

		BestBuyAPIKey:     getEnv("BESTBUY_API_KEY", ""),
		BestBuyRPS:        getEnvFloat("BESTBUY_RPS", 5),
		BestBuyDailyLimit: getEnvInt("BESTBUY_DAILY_LIMIT", 50000),
		WalmartAPIKey:     getEnv("WALMART_API_KEY", ""),
		WalmartRPS:        getEnvFloat("WALMART_RPS", 5),
	}
}

// Validate checks that all required configuration is present.
// A failure here is fatal at startup.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
