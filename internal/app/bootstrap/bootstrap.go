package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	orderservice "fulfillment/contexts/commerce/order-service"
	postgresadapter "fulfillment/contexts/commerce/order-service/adapters/postgres"
	workerapp "fulfillment/contexts/commerce/order-service/application/workers"
	"fulfillment/internal/platform/config"
	"fulfillment/internal/platform/db"
	"fulfillment/internal/platform/httpserver"
	"fulfillment/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	rabbit   *messaging.RabbitMQ
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	rabbit       *messaging.RabbitMQ
	processor    workerapp.OrderProcessor
	outboxRelay  workerapp.OutboxRelay
	processQueue string
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rabbit := messaging.NewRabbitMQ(messaging.Options{
		Host:     cfg.RabbitMQHost,
		Port:     cfg.RabbitMQPort,
		User:     cfg.RabbitMQUser,
		Password: cfg.RabbitMQPassword,
		Queues:   []string{cfg.OrdersProcessQueue, cfg.OrdersDlqQueue},
	}, logger)

	repo := postgresadapter.NewRepository(pg.DB, cfg.OrdersProcessQueue, logger)
	module := orderservice.NewModule(orderservice.Dependencies{
		Orders:       repo,
		Products:     repo,
		Outbox:       repo,
		Publisher:    rabbit,
		Clock:        postgresadapter.SystemClock{},
		ProcessQueue: cfg.OrdersProcessQueue,
		Producer:     cfg.ServiceName,
		Logger:       logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		rabbit:   rabbit,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rabbit := messaging.NewRabbitMQ(messaging.Options{
		Host:     cfg.RabbitMQHost,
		Port:     cfg.RabbitMQPort,
		User:     cfg.RabbitMQUser,
		Password: cfg.RabbitMQPassword,
		Queues:   []string{cfg.OrdersProcessQueue, cfg.OrdersDlqQueue},
	}, logger)

	repo := postgresadapter.NewRepository(pg.DB, cfg.OrdersProcessQueue, logger)
	return &WorkerApp{
		postgres: pg,
		rabbit:   rabbit,
		processor: orderservice.NewOrderProcessor(orderservice.ProcessorDependencies{
			Consumer:       rabbit,
			Publisher:      rabbit,
			Orders:         repo,
			Clock:          postgresadapter.SystemClock{},
			ProcessQueue:   cfg.OrdersProcessQueue,
			DlqQueue:       cfg.OrdersDlqQueue,
			MaxAttempts:    cfg.MaxAttempts,
			RetryDelay:     cfg.RetryDelay,
			SimulatedDelay: cfg.SimulatedDelay,
			Logger:         logger,
		}),
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: rabbit,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		processQueue: cfg.OrdersProcessQueue,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- w.processor.Start(ctx)
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"queue", w.processQueue,
		"poll_interval", w.pollInterval.String(),
	)

	for {
		// A transient storage error on one cycle must not take the consumer
		// down with it; pending rows are retried on the next tick.
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			w.logger.Warn("outbox relay cycle failed, will retry",
				"event", "bootstrap_outbox_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-consumeErr:
			return err
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.rabbit != nil {
		_ = w.rabbit.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
