package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "fulfillment/contexts/commerce/order-service/application"
	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
	"fulfillment/internal/shared/events"
)

type CreateOrderLine struct {
	ProductID int64
	Quantity  int
}

type CreateOrderCommand struct {
	UserID          int64
	ShippingAddress string
	IdempotencyKey  string
	Lines           []CreateOrderLine
}

type CreateOrderResult struct {
	Order entities.Order
	// Created is false when the idempotency key resolved to an existing order.
	Created bool
}

// CreateOrderUseCase orchestrates idempotent order creation: fast-path key
// lookup, the reservation transaction, the 23505 race re-query, and the
// post-commit publish with the outbox as durable fallback.
type CreateOrderUseCase struct {
	Orders       ports.OrderRepository
	Outbox       ports.OutboxRepository
	Publisher    ports.QueuePublisher
	Clock        ports.Clock
	ProcessQueue string
	Producer     string
	Logger       *slog.Logger
}

func (uc CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	if len(cmd.Lines) == 0 {
		return CreateOrderResult{}, domainerrors.ErrInvalidOrderInput
	}
	for _, line := range cmd.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return CreateOrderResult{}, domainerrors.ErrInvalidOrderInput
		}
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key != "" {
		existing, found, err := uc.Orders.GetOrderByIdempotencyKey(ctx, key)
		if err != nil {
			return CreateOrderResult{}, err
		}
		if found {
			return CreateOrderResult{Order: existing, Created: false}, nil
		}
	}

	now := uc.now()
	input := ports.CreateOrderInput{
		UserID:          cmd.UserID,
		ShippingAddress: cmd.ShippingAddress,
		IdempotencyKey:  key,
	}
	for _, line := range cmd.Lines {
		input.Lines = append(input.Lines, ports.CreateOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, envelope, err := uc.Orders.CreateOrder(ctx, input, uc.Producer, now)
	if err != nil {
		// A concurrent request holding the same key won the race between the
		// fast-path lookup and the insert; the storage constraint is the
		// source of truth, so re-query and return the winner.
		if errors.Is(err, domainerrors.ErrIdempotencyConflict) && key != "" {
			existing, found, lookupErr := uc.Orders.GetOrderByIdempotencyKey(ctx, key)
			if lookupErr == nil && found {
				return CreateOrderResult{Order: existing, Created: false}, nil
			}
		}
		if errors.Is(err, domainerrors.ErrProductNotFound) ||
			errors.Is(err, domainerrors.ErrInsufficientStock) ||
			errors.Is(err, domainerrors.ErrInvalidOrderInput) {
			return CreateOrderResult{}, err
		}
		logger.Error("order creation failed",
			"event", "order_create_failed",
			"module", "commerce/order-service",
			"layer", "application",
			"user_id", cmd.UserID,
			"error", err.Error(),
		)
		return CreateOrderResult{}, domainerrors.ErrOrderCreationFailed
	}

	uc.publishCreated(ctx, envelope, now, logger)

	logger.Info("order created",
		"event", "order_created",
		"module", "commerce/order-service",
		"layer", "application",
		"order_id", order.ID,
		"total_cents", order.TotalCents,
		"lines", len(order.Lines),
	)
	return CreateOrderResult{Order: order, Created: true}, nil
}

// publishCreated tries a direct publish after commit. On success the outbox
// row is marked published; on failure the row stays pending and the relay
// delivers it later. The processed-message ledger collapses the rare double
// publish when a crash lands between publish and mark.
func (uc CreateOrderUseCase) publishCreated(
	ctx context.Context,
	envelope events.OrderProcessMessage,
	now time.Time,
	logger *slog.Logger,
) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		logger.Error("order.created envelope encode failed",
			"event", "order_created_encode_failed",
			"module", "commerce/order-service",
			"layer", "application",
			"message_id", envelope.MessageID,
			"error", err.Error(),
		)
		return
	}

	if uc.Publisher == nil || !uc.Publisher.Publish(ctx, uc.queue(), payload) {
		logger.Warn("order.created direct publish failed, outbox relay will deliver",
			"event", "order_created_publish_deferred",
			"module", "commerce/order-service",
			"layer", "application",
			"message_id", envelope.MessageID,
			"order_id", int64(envelope.OrderID),
		)
		return
	}

	if uc.Outbox != nil {
		if err := uc.Outbox.MarkOutboxPublished(ctx, envelope.MessageID, now); err != nil {
			logger.Warn("outbox mark published failed, relay may publish a duplicate",
				"event", "order_created_outbox_mark_failed",
				"module", "commerce/order-service",
				"layer", "application",
				"message_id", envelope.MessageID,
				"error", err.Error(),
			)
		}
	}
}

func (uc CreateOrderUseCase) queue() string {
	if uc.ProcessQueue == "" {
		return "orders.process"
	}
	return uc.ProcessQueue
}

func (uc CreateOrderUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
