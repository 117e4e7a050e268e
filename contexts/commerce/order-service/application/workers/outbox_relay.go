package workers

import (
	"context"
	"log/slog"
	"time"

	application "fulfillment/contexts/commerce/order-service/application"
	"fulfillment/contexts/commerce/order-service/ports"
)

// OutboxRelay sweeps pending order.created outbox rows to the broker.
// Rows stay pending when the broker is down and get retried next cycle;
// the consumer's processed-message ledger absorbs any duplicate publish.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.QueuePublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "order_outbox_list_failed",
			"module", "commerce/order-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	for _, row := range pending {
		if !r.Publisher.Publish(ctx, row.Queue, row.Payload) {
			logger.Warn("outbox publish failed, row stays pending",
				"event", "order_outbox_publish_deferred",
				"module", "commerce/order-service",
				"layer", "worker",
				"message_id", row.MessageID,
				"queue", row.Queue,
			)
			continue
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.MessageID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "order_outbox_mark_failed",
				"module", "commerce/order-service",
				"layer", "worker",
				"message_id", row.MessageID,
				"error", err.Error(),
			)
			return err
		}
		published++
	}

	if published > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "order_outbox_relay_completed",
			"module", "commerce/order-service",
			"layer", "worker",
			"published", published,
		)
	}
	return nil
}
