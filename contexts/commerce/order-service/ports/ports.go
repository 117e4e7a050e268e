package ports

import (
	"context"
	"time"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	"fulfillment/internal/shared/events"
)

type CreateOrderLine struct {
	ProductID int64
	Quantity  int
}

type CreateOrderInput struct {
	UserID          int64
	ShippingAddress string
	IdempotencyKey  string
	Lines           []CreateOrderLine
}

// OrderRepository owns order and inventory mutation during creation.
// CreateOrder runs the whole reservation transaction: sorted pessimistic
// locks, availability checks, stock decrement, line snapshots, outbox row.
type OrderRepository interface {
	CreateOrder(
		ctx context.Context,
		input CreateOrderInput,
		producer string,
		now time.Time,
	) (entities.Order, events.OrderProcessMessage, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (entities.Order, bool, error)
	GetOrder(ctx context.Context, orderID int64) (entities.Order, error)
	ListOrders(ctx context.Context) ([]entities.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]entities.Order, error)
}

type ProductRepository interface {
	GetProduct(ctx context.Context, productID int64) (entities.Product, error)
	ListProducts(ctx context.Context) ([]entities.Product, error)
}

type ProcessOutcome string

const (
	ProcessOutcomeApplied          ProcessOutcome = "applied"
	ProcessOutcomeAlreadyClaimed   ProcessOutcome = "already_claimed"
	ProcessOutcomeOrderNotFound    ProcessOutcome = "order_not_found"
	ProcessOutcomeAlreadyProcessed ProcessOutcome = "already_processed"
)

// ProcessingRepository owns the processing -> processed transition and the
// processed-message ledger insert, both inside one transaction.
type ProcessingRepository interface {
	ApplyOrderProcessed(
		ctx context.Context,
		messageID string,
		orderID int64,
		handler string,
		now time.Time,
		simulatedDelay time.Duration,
	) (ProcessOutcome, error)
}

type OutboxMessage struct {
	MessageID string
	Queue     string
	Payload   []byte
	CreatedAt time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, messageID string, publishedAt time.Time) error
}

// QueuePublisher reports failure instead of returning an error so callers
// can degrade gracefully when the broker is down.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) bool
}

type Delivery interface {
	Body() []byte
	Ack()
	Nack(requeue bool)
}

// QueueConsumer delivers messages strictly one at a time per instance
// (prefetch 1); the handler must ack or nack every delivery.
type QueueConsumer interface {
	Consume(ctx context.Context, queue string, handler func(context.Context, Delivery)) error
}

type Clock interface {
	Now() time.Time
}
