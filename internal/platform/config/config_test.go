package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ServiceName != "fulfillment" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected port %q", cfg.HTTPPort)
	}
	if cfg.OrdersProcessQueue != "orders.process" || cfg.OrdersDlqQueue != "orders.dlq" {
		t.Fatalf("unexpected queue names %q %q", cfg.OrdersProcessQueue, cfg.OrdersDlqQueue)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected max attempts %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelay != 5*time.Second {
		t.Fatalf("unexpected retry delay %s", cfg.RetryDelay)
	}
	if cfg.OutboxPollInterval != 2*time.Second || cfg.OutboxBatchSize != 100 {
		t.Fatalf("unexpected outbox settings %s %d", cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	}
	if cfg.RabbitMQPort != 5672 {
		t.Fatalf("unexpected rabbitmq port %d", cfg.RabbitMQPort)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "orders-api")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ORDERS_PROCESS_QUEUE", "orders.process.v2")
	t.Setenv("ORDER_PROCESSOR_MAX_ATTEMPTS", "5")
	t.Setenv("ORDER_PROCESSOR_RETRY_DELAY_MS", "250")
	t.Setenv("ORDER_PROCESSOR_SLEEP_MS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServiceName != "orders-api" || cfg.HTTPPort != "9090" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.OrdersProcessQueue != "orders.process.v2" {
		t.Fatalf("unexpected queue %q", cfg.OrdersProcessQueue)
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Fatalf("unexpected retry delay %s", cfg.RetryDelay)
	}
	if cfg.SimulatedDelay != 10*time.Millisecond {
		t.Fatalf("unexpected simulated delay %s", cfg.SimulatedDelay)
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("ORDER_PROCESSOR_MAX_ATTEMPTS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("expected fallback on unparseable value, got %d", cfg.MaxAttempts)
	}
}
