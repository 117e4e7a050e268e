package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	OrdersProcessQueue string
	OrdersDlqQueue     string

	MaxAttempts        int
	RetryDelay         time.Duration
	SimulatedDelay     time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "fulfillment"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		RabbitMQHost:     os.Getenv("RABBITMQ_HOST"),
		RabbitMQPort:     envInt("RABBITMQ_PORT", 5672),
		RabbitMQUser:     os.Getenv("RABBITMQ_USER"),
		RabbitMQPassword: os.Getenv("RABBITMQ_PASSWORD"),

		OrdersProcessQueue: envString("ORDERS_PROCESS_QUEUE", "orders.process"),
		OrdersDlqQueue:     envString("ORDERS_DLQ_QUEUE", "orders.dlq"),

		MaxAttempts:        envInt("ORDER_PROCESSOR_MAX_ATTEMPTS", 3),
		RetryDelay:         envMillis("ORDER_PROCESSOR_RETRY_DELAY_MS", 5000),
		SimulatedDelay:     envMillis("ORDER_PROCESSOR_SLEEP_MS", 0),
		OutboxPollInterval: envMillis("OUTBOX_POLL_INTERVAL_MS", 2000),
		OutboxBatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
	}, nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envMillis(name string, fallbackMs int) time.Duration {
	return time.Duration(envInt(name, fallbackMs)) * time.Millisecond
}
