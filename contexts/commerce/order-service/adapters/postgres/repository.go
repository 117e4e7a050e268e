package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
	"fulfillment/internal/shared/events"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Transaction-local sentinels: force a rollback without surfacing an error
// to the caller; the outcome value carries the result instead.
var (
	errLedgerAlreadyClaimed = errors.New("processed message already claimed")
	errProcessOrderMissing  = errors.New("processed order missing")
)

type Repository struct {
	db           *gorm.DB
	processQueue string
	logger       *slog.Logger
}

func NewRepository(db *gorm.DB, processQueue string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if processQueue == "" {
		processQueue = "orders.process"
	}
	return &Repository{
		db:           db,
		processQueue: processQueue,
		logger:       logger,
	}
}

// CreateOrder runs the reservation transaction: lock the requested product
// rows in ascending id order, validate every line before mutating anything,
// decrement stock, snapshot prices onto lines, and append the order.created
// outbox row. All-or-nothing.
func (r *Repository) CreateOrder(
	ctx context.Context,
	input ports.CreateOrderInput,
	producer string,
	now time.Time,
) (entities.Order, events.OrderProcessMessage, error) {
	timestamp := now.UTC()
	var orderID int64
	var envelope events.OrderProcessMessage

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productIDs := distinctSortedProductIDs(input.Lines)

		var lockedRows []productModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", productIDs).
			Order("id ASC").
			Find(&lockedRows).
			Error; err != nil {
			return err
		}

		locked := make(map[int64]productModel, len(lockedRows))
		for _, row := range lockedRows {
			locked[row.ID] = row
		}

		// Validate every line against the locked stock before touching
		// anything; a failure on line N must leave lines 1..N-1 untouched.
		remaining := make(map[int64]int, len(lockedRows))
		for _, row := range lockedRows {
			remaining[row.ID] = row.Stock
		}
		for _, line := range input.Lines {
			row, ok := locked[line.ProductID]
			if !ok {
				return domainerrors.ProductNotFoundError{ProductID: line.ProductID}
			}
			if remaining[line.ProductID] < line.Quantity {
				return domainerrors.InsufficientStockError{
					ProductID:   row.ID,
					ProductName: row.Name,
					Available:   remaining[line.ProductID],
					Requested:   line.Quantity,
				}
			}
			remaining[line.ProductID] -= line.Quantity
		}

		order := orderModel{
			IdempotencyKey:  nullableString(input.IdempotencyKey),
			Status:          string(entities.OrderStatusPending),
			TotalCents:      0,
			ShippingAddress: input.ShippingAddress,
			UserID:          nullableID(input.UserID),
			CreatedAt:       timestamp,
			UpdatedAt:       timestamp,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		orderID = order.ID

		var totalCents int64
		for _, line := range input.Lines {
			row := locked[line.ProductID]
			row.Stock -= line.Quantity
			locked[line.ProductID] = row

			if err := tx.Model(&productModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"stock":      row.Stock,
					"updated_at": timestamp,
				}).
				Error; err != nil {
				return err
			}

			lineRow := orderLineModel{
				OrderID:        order.ID,
				ProductID:      row.ID,
				Quantity:       line.Quantity,
				UnitPriceCents: row.PriceCents,
				CreatedAt:      timestamp,
			}
			if err := tx.Create(&lineRow).Error; err != nil {
				return err
			}
			totalCents += row.PriceCents * int64(line.Quantity)
		}

		if err := tx.Model(&orderModel{}).
			Where("id = ?", order.ID).
			Updates(map[string]any{
				"total_cents": totalCents,
				"updated_at":  timestamp,
			}).
			Error; err != nil {
			return err
		}

		envelope = events.NewOrderProcessMessage(order.ID, producer, timestamp)
		return insertOutboxEnvelopeTx(tx, envelope, r.processQueue, timestamp)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return entities.Order{}, events.OrderProcessMessage{}, domainerrors.ErrIdempotencyConflict
		}
		return entities.Order{}, events.OrderProcessMessage{}, err
	}

	created, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return entities.Order{}, events.OrderProcessMessage{}, err
	}
	return created, envelope, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (entities.Order, bool, error) {
	var row orderModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Order{}, false, nil
		}
		return entities.Order{}, false, err
	}
	order, err := r.hydrateOrder(ctx, row)
	if err != nil {
		return entities.Order{}, false, err
	}
	return order, true, nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (entities.Order, error) {
	var row orderModel
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Order{}, domainerrors.ErrOrderNotFound
		}
		return entities.Order{}, err
	}
	return r.hydrateOrder(ctx, row)
}

func (r *Repository) ListOrders(ctx context.Context) ([]entities.Order, error) {
	var rows []orderModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, rows)
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64) ([]entities.Order, error) {
	var rows []orderModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, rows)
}

// ApplyOrderProcessed is the consumer-side transaction. The ledger insert
// claims the message id; a unique violation means a prior delivery already
// claimed it and the whole transaction rolls back. An order already in
// processed state commits so the ledger row is kept.
func (r *Repository) ApplyOrderProcessed(
	ctx context.Context,
	messageID string,
	orderID int64,
	handler string,
	now time.Time,
	simulatedDelay time.Duration,
) (ports.ProcessOutcome, error) {
	timestamp := now.UTC()
	outcome := ports.ProcessOutcomeApplied

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledgerRow := processedMessageModel{
			MessageID:   messageID,
			ProcessedAt: timestamp,
			OrderID:     orderID,
			Handler:     handler,
		}
		if err := tx.Create(&ledgerRow).Error; err != nil {
			if isUniqueViolation(err) {
				outcome = ports.ProcessOutcomeAlreadyClaimed
				return errLedgerAlreadyClaimed
			}
			return err
		}

		var row orderModel
		if err := tx.Where("id = ?", orderID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = ports.ProcessOutcomeOrderNotFound
				return errProcessOrderMissing
			}
			return err
		}

		if row.Status == string(entities.OrderStatusProcessed) {
			outcome = ports.ProcessOutcomeAlreadyProcessed
			return nil
		}

		if simulatedDelay > 0 {
			time.Sleep(simulatedDelay)
		}

		return tx.Model(&orderModel{}).
			Where("id = ?", orderID).
			Updates(map[string]any{
				"status":       string(entities.OrderStatusProcessed),
				"processed_at": timestamp,
				"updated_at":   timestamp,
			}).
			Error
	})
	if err != nil {
		if errors.Is(err, errLedgerAlreadyClaimed) || errors.Is(err, errProcessOrderMissing) {
			return outcome, nil
		}
		return "", err
	}
	return outcome, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			MessageID: row.MessageID,
			Queue:     row.Queue,
			Payload:   append([]byte(nil), row.Payload...),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, messageID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, productID int64) (entities.Product, error) {
	var row productModel
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Product{}, domainerrors.ProductNotFoundError{ProductID: productID}
		}
		return entities.Product{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]entities.Product, error) {
	var rows []productModel
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) hydrateOrder(ctx context.Context, row orderModel) (entities.Order, error) {
	orders, err := r.hydrateOrders(ctx, []orderModel{row})
	if err != nil {
		return entities.Order{}, err
	}
	return orders[0], nil
}

func (r *Repository) hydrateOrders(ctx context.Context, rows []orderModel) ([]entities.Order, error) {
	if len(rows) == 0 {
		return []entities.Order{}, nil
	}

	orderIDs := make([]int64, 0, len(rows))
	userIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		orderIDs = append(orderIDs, row.ID)
		if row.UserID != nil {
			userIDs = append(userIDs, *row.UserID)
		}
	}

	var lineRows []orderLineModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("id ASC").
		Find(&lineRows).
		Error; err != nil {
		return nil, err
	}
	linesByOrder := make(map[int64][]entities.OrderLine, len(rows))
	for _, line := range lineRows {
		linesByOrder[line.OrderID] = append(linesByOrder[line.OrderID], line.toEntity())
	}

	usersByID := make(map[int64]entities.User)
	if len(userIDs) > 0 {
		var userRows []userModel
		if err := r.db.WithContext(ctx).
			Where("id IN ?", userIDs).
			Find(&userRows).
			Error; err != nil {
			return nil, err
		}
		for _, user := range userRows {
			usersByID[user.ID] = user.toEntity()
		}
	}

	items := make([]entities.Order, 0, len(rows))
	for _, row := range rows {
		order := row.toEntity()
		order.Lines = linesByOrder[row.ID]
		if order.Lines == nil {
			order.Lines = []entities.OrderLine{}
		}
		if row.UserID != nil {
			if user, ok := usersByID[*row.UserID]; ok {
				owner := user
				order.User = &owner
			}
		}
		items = append(items, order)
	}
	return items, nil
}

func insertOutboxEnvelopeTx(tx *gorm.DB, envelope events.OrderProcessMessage, queue string, now time.Time) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		MessageID: envelope.MessageID,
		Queue:     queue,
		Payload:   payload,
		Status:    outboxStatusPending,
		CreatedAt: now.UTC(),
	}
	return tx.Create(&row).Error
}

func distinctSortedProductIDs(lines []ports.CreateOrderLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	// Fixed global lock order; two orders over overlapping product sets
	// always acquire row locks in the same sequence.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableID(value int64) *int64 {
	if value == 0 {
		return nil
	}
	return &value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
