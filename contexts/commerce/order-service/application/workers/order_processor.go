package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fulfillment/contexts/commerce/order-service/application"
	"fulfillment/contexts/commerce/order-service/ports"
	"fulfillment/internal/shared/events"
)

const maxReasonLen = 200

// OrderProcessor consumes order.created events with prefetch 1 and drives
// each message through: ledger claim -> status transition -> ack, or on
// failure: ack then republish with attempt+1 after a delay, or dead-letter
// once attempts are exhausted. The original delivery is always acked on
// failure; broker-native requeue would lose the attempt counter.
type OrderProcessor struct {
	Consumer       ports.QueueConsumer
	Publisher      ports.QueuePublisher
	Orders         ports.ProcessingRepository
	Clock          ports.Clock
	ProcessQueue   string
	DlqQueue       string
	MaxAttempts    int
	RetryDelay     time.Duration
	SimulatedDelay time.Duration
	// Sleep is swappable in tests; nil means time.Sleep.
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

func (p OrderProcessor) Start(ctx context.Context) error {
	return p.Consumer.Consume(ctx, p.processQueue(), p.HandleDelivery)
}

func (p OrderProcessor) HandleDelivery(ctx context.Context, delivery ports.Delivery) {
	logger := application.ResolveLogger(p.Logger)

	var msg events.OrderProcessMessage
	if err := json.Unmarshal(delivery.Body(), &msg); err != nil {
		// Poison message: it can never succeed, drop it for liveness.
		logger.Warn("malformed order message, dropped without retry",
			"event", "order_process_poison_message",
			"module", "commerce/order-service",
			"layer", "worker",
			"error", err.Error(),
		)
		delivery.Nack(false)
		return
	}

	orderID := int64(msg.OrderID)
	if orderID <= 0 || msg.MessageID == "" {
		logger.Warn("invalid order message, dropped without retry",
			"event", "order_process_invalid_message",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
		delivery.Nack(false)
		return
	}

	outcome, err := p.Orders.ApplyOrderProcessed(
		ctx, msg.MessageID, orderID, events.OrderProcessHandler, p.now(), p.SimulatedDelay)
	if err != nil {
		delivery.Ack()
		p.recover(ctx, msg, orderID, err, logger)
		return
	}

	switch outcome {
	case ports.ProcessOutcomeAlreadyClaimed:
		logger.Info("message already processed, idempotent skip",
			"event", "order_process_duplicate_skipped",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
	case ports.ProcessOutcomeOrderNotFound:
		logger.Warn("order not found, stale event skipped",
			"event", "order_process_order_missing",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
	case ports.ProcessOutcomeAlreadyProcessed:
		logger.Info("order already processed",
			"event", "order_process_already_processed",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
	default:
		logger.Info("order processed",
			"event", "order_processed",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
	}
	delivery.Ack()
}

// recover runs after the transaction rolled back and the delivery was acked:
// either schedule a retry republish or route to the dead-letter queue.
func (p OrderProcessor) recover(
	ctx context.Context,
	msg events.OrderProcessMessage,
	orderID int64,
	cause error,
	logger *slog.Logger,
) {
	reason := truncateReason(cause)

	if msg.Attempt < p.maxAttempts() {
		logger.Warn("order processing failed, scheduling retry",
			"event", "order_process_retry_scheduled",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
			"next_attempt", msg.Attempt+1,
			"max_attempts", p.maxAttempts(),
			"delay", p.RetryDelay.String(),
			"reason", reason,
		)
		p.sleep(p.RetryDelay)

		retry := msg
		retry.Attempt++
		payload, err := json.Marshal(retry)
		if err == nil && p.Publisher.Publish(ctx, p.processQueue(), payload) {
			return
		}
		logger.Error("republish failed, message lost",
			"event", "order_process_republish_failed",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
			"attempt", msg.Attempt,
		)
		return
	}

	logger.Error("order processing attempts exhausted, routing to dead-letter queue",
		"event", "order_process_dead_lettered",
		"module", "commerce/order-service",
		"layer", "worker",
		"message_id", msg.MessageID,
		"order_id", orderID,
		"attempt", msg.Attempt,
		"reason", reason,
	)

	dlq := events.OrderDlqMessage{
		OrderProcessMessage: msg,
		FailedAt:            p.now(),
		Reason:              reason,
	}
	payload, err := json.Marshal(dlq)
	if err != nil || !p.Publisher.Publish(ctx, p.dlqQueue(), payload) {
		logger.Error("dead-letter publish failed, message lost",
			"event", "order_process_dlq_publish_failed",
			"module", "commerce/order-service",
			"layer", "worker",
			"message_id", msg.MessageID,
			"order_id", orderID,
		)
	}
}

func (p OrderProcessor) processQueue() string {
	if p.ProcessQueue == "" {
		return "orders.process"
	}
	return p.ProcessQueue
}

func (p OrderProcessor) dlqQueue() string {
	if p.DlqQueue == "" {
		return "orders.dlq"
	}
	return p.DlqQueue
}

func (p OrderProcessor) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p OrderProcessor) now() time.Time {
	if p.Clock != nil {
		return p.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (p OrderProcessor) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func truncateReason(err error) string {
	reason := strings.Join(strings.Fields(err.Error()), " ")
	runes := []rune(reason)
	if len(runes) > maxReasonLen {
		return string(runes[:maxReasonLen]) + "…"
	}
	return reason
}
