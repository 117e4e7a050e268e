package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"fulfillment/contexts/commerce/order-service/ports"
)

// RabbitMQ is the process-scoped broker client: one connection, a publish
// channel and a consume channel with prefetch 1. When the broker is not
// configured or unreachable, publishing reports failure instead of
// panicking so callers can degrade gracefully.
type RabbitMQ struct {
	mu          sync.Mutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	consumeChan *amqp.Channel
	logger      *slog.Logger
}

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	// Queues are declared durable on connect.
	Queues []string
}

func NewRabbitMQ(opts Options, logger *slog.Logger) *RabbitMQ {
	if logger == nil {
		logger = slog.Default()
	}
	client := &RabbitMQ{logger: logger}

	if opts.Host == "" {
		logger.Warn("rabbitmq not configured, publishing disabled",
			"event", "rabbitmq_not_configured",
			"module", "internal/platform/messaging",
			"layer", "platform",
		)
		return client
	}

	port := opts.Port
	if port == 0 {
		port = 5672
	}
	addr := fmt.Sprintf("amqp://%s:%s@%s:%d",
		url.QueryEscape(opts.User), url.QueryEscape(opts.Password), opts.Host, port)

	conn, err := amqp.Dial(addr)
	if err != nil {
		logger.Error("rabbitmq connect failed",
			"event", "rabbitmq_connect_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"host", opts.Host,
			"error", err.Error(),
		)
		return client
	}

	channel, err := conn.Channel()
	if err != nil {
		logger.Error("rabbitmq publish channel failed",
			"event", "rabbitmq_channel_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"error", err.Error(),
		)
		_ = conn.Close()
		return client
	}

	consumeChan, err := conn.Channel()
	if err != nil {
		logger.Error("rabbitmq consume channel failed",
			"event", "rabbitmq_channel_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"error", err.Error(),
		)
		_ = conn.Close()
		return client
	}
	// Strictly sequential processing per consumer instance.
	if err := consumeChan.Qos(1, 0, false); err != nil {
		logger.Error("rabbitmq qos failed",
			"event", "rabbitmq_qos_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"error", err.Error(),
		)
		_ = conn.Close()
		return client
	}

	for _, queue := range opts.Queues {
		if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			logger.Error("rabbitmq queue declare failed",
				"event", "rabbitmq_queue_declare_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"queue", queue,
				"error", err.Error(),
			)
			_ = conn.Close()
			return client
		}
	}

	closes := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if reason, ok := <-closes; ok && reason != nil {
			logger.Warn("rabbitmq connection closed",
				"event", "rabbitmq_connection_closed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"error", reason.Error(),
			)
		}
	}()

	client.conn = conn
	client.channel = channel
	client.consumeChan = consumeChan
	logger.Info("rabbitmq connected and queues declared",
		"event", "rabbitmq_connected",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"host", opts.Host,
		"queues", opts.Queues,
	)
	return client
}

// Publish sends a persistent JSON message to the named queue. Returns false
// on any failure; the caller decides how to recover.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) bool {
	r.mu.Lock()
	channel := r.channel
	r.mu.Unlock()

	if channel == nil {
		r.logger.Warn("rabbitmq channel not available, skip publish",
			"event", "rabbitmq_publish_skipped",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"queue", queue,
		)
		return false
	}

	err := channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		r.logger.Error("rabbitmq publish failed",
			"event", "rabbitmq_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"queue", queue,
			"error", err.Error(),
		)
		return false
	}
	return true
}

// Consume delivers queue messages to the handler one at a time. The handler
// must ack or nack every delivery. Blocks until the context is cancelled or
// the delivery channel closes.
func (r *RabbitMQ) Consume(
	ctx context.Context,
	queue string,
	handler func(context.Context, ports.Delivery),
) error {
	r.mu.Lock()
	channel := r.consumeChan
	r.mu.Unlock()

	if channel == nil {
		return fmt.Errorf("rabbitmq consume channel not available for queue %s", queue)
	}

	deliveries, err := channel.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consumer on %s: %w", queue, err)
	}

	r.logger.Info("rabbitmq consumer started",
		"event", "rabbitmq_consumer_started",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"queue", queue,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			handler(ctx, amqpDelivery{delivery: delivery, logger: r.logger})
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consumeChan != nil {
		_ = r.consumeChan.Close()
		r.consumeChan = nil
	}
	if r.channel != nil {
		_ = r.channel.Close()
		r.channel = nil
	}
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

type amqpDelivery struct {
	delivery amqp.Delivery
	logger   *slog.Logger
}

func (d amqpDelivery) Body() []byte {
	return d.delivery.Body
}

func (d amqpDelivery) Ack() {
	if err := d.delivery.Ack(false); err != nil {
		d.logger.Error("rabbitmq ack failed",
			"event", "rabbitmq_ack_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (d amqpDelivery) Nack(requeue bool) {
	if err := d.delivery.Nack(false, requeue); err != nil {
		d.logger.Error("rabbitmq nack failed",
			"event", "rabbitmq_nack_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}
