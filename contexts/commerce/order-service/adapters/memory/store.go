package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
	"fulfillment/internal/shared/events"
)

// Store is the in-memory stand-in for the postgres adapter. The single
// mutex plays the role of the row locks: creation and processing are
// serialized the way the transaction boundary serializes them, and the
// uniqueness checks mirror the storage constraints.
type Store struct {
	mu           sync.Mutex
	products     map[int64]entities.Product
	users        map[int64]entities.User
	orders       map[int64]entities.Order
	keyIndex     map[string]int64
	processed    map[string]entities.ProcessedMessage
	outbox       []outboxRow
	nextOrderID  int64
	nextLineID   int64
	processQueue string
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore(products []entities.Product, users []entities.User) *Store {
	store := &Store{
		products:     make(map[int64]entities.Product, len(products)),
		users:        make(map[int64]entities.User, len(users)),
		orders:       make(map[int64]entities.Order),
		keyIndex:     make(map[string]int64),
		processed:    make(map[string]entities.ProcessedMessage),
		processQueue: "orders.process",
	}
	for _, product := range products {
		store.products[product.ID] = product
	}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) CreateOrder(
	_ context.Context,
	input ports.CreateOrderInput,
	producer string,
	now time.Time,
) (entities.Order, events.OrderProcessMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := now.UTC()

	// Lock acquisition order is irrelevant under one mutex, but validation
	// still runs against every line before any mutation.
	remaining := make(map[int64]int, len(input.Lines))
	for _, line := range input.Lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			return entities.Order{}, events.OrderProcessMessage{}, domainerrors.ProductNotFoundError{ProductID: line.ProductID}
		}
		if _, seen := remaining[line.ProductID]; !seen {
			remaining[line.ProductID] = product.Stock
		}
		if remaining[line.ProductID] < line.Quantity {
			return entities.Order{}, events.OrderProcessMessage{}, domainerrors.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   remaining[line.ProductID],
				Requested:   line.Quantity,
			}
		}
		remaining[line.ProductID] -= line.Quantity
	}

	// The storage-level unique constraint on the idempotency key.
	if input.IdempotencyKey != "" {
		if _, exists := s.keyIndex[input.IdempotencyKey]; exists {
			return entities.Order{}, events.OrderProcessMessage{}, domainerrors.ErrIdempotencyConflict
		}
	}

	s.nextOrderID++
	order := entities.Order{
		ID:              s.nextOrderID,
		IdempotencyKey:  input.IdempotencyKey,
		Status:          entities.OrderStatusPending,
		ShippingAddress: input.ShippingAddress,
		CreatedAt:       timestamp,
		UpdatedAt:       timestamp,
	}
	if input.UserID > 0 {
		userID := input.UserID
		order.UserID = &userID
		if user, ok := s.users[userID]; ok {
			owner := user
			order.User = &owner
		}
	}

	var totalCents int64
	for _, line := range input.Lines {
		product := s.products[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = timestamp
		s.products[line.ProductID] = product

		s.nextLineID++
		order.Lines = append(order.Lines, entities.OrderLine{
			ID:             s.nextLineID,
			OrderID:        order.ID,
			ProductID:      product.ID,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			CreatedAt:      timestamp,
		})
		totalCents += product.PriceCents * int64(line.Quantity)
	}
	order.TotalCents = totalCents

	s.orders[order.ID] = order
	if input.IdempotencyKey != "" {
		s.keyIndex[input.IdempotencyKey] = order.ID
	}

	envelope := events.NewOrderProcessMessage(order.ID, producer, timestamp)
	payload, err := json.Marshal(envelope)
	if err != nil {
		return entities.Order{}, events.OrderProcessMessage{}, err
	}
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			MessageID: envelope.MessageID,
			Queue:     s.processQueue,
			Payload:   payload,
			CreatedAt: timestamp,
		},
	})

	return cloneOrder(order), envelope, nil
}

func (s *Store) GetOrderByIdempotencyKey(_ context.Context, key string) (entities.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderID, ok := s.keyIndex[key]
	if !ok {
		return entities.Order{}, false, nil
	}
	return cloneOrder(s.orders[orderID]), true, nil
}

func (s *Store) GetOrder(_ context.Context, orderID int64) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, domainerrors.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(_ context.Context) ([]entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Order, 0, len(s.orders))
	for _, order := range s.orders {
		items = append(items, cloneOrder(order))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64) ([]entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Order, 0)
	for _, order := range s.orders {
		if order.UserID != nil && *order.UserID == userID {
			items = append(items, cloneOrder(order))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (s *Store) ApplyOrderProcessed(
	_ context.Context,
	messageID string,
	orderID int64,
	handler string,
	now time.Time,
	simulatedDelay time.Duration,
) (ports.ProcessOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, claimed := s.processed[messageID]; claimed {
		return ports.ProcessOutcomeAlreadyClaimed, nil
	}

	order, ok := s.orders[orderID]
	if !ok {
		return ports.ProcessOutcomeOrderNotFound, nil
	}

	timestamp := now.UTC()
	if order.Status == entities.OrderStatusProcessed {
		s.processed[messageID] = entities.ProcessedMessage{
			MessageID:   messageID,
			ProcessedAt: timestamp,
			OrderID:     orderID,
			Handler:     handler,
		}
		return ports.ProcessOutcomeAlreadyProcessed, nil
	}

	if simulatedDelay > 0 {
		time.Sleep(simulatedDelay)
	}

	s.processed[messageID] = entities.ProcessedMessage{
		MessageID:   messageID,
		ProcessedAt: timestamp,
		OrderID:     orderID,
		Handler:     handler,
	}
	order.Status = entities.OrderStatusProcessed
	processedAt := timestamp
	order.ProcessedAt = &processedAt
	order.UpdatedAt = timestamp
	s.orders[orderID] = order
	return ports.ProcessOutcomeApplied, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, messageID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.MessageID == messageID {
			s.outbox[i].published = true
			return nil
		}
	}
	return domainerrors.ErrOrderNotFound
}

func (s *Store) GetProduct(_ context.Context, productID int64) (entities.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return entities.Product{}, domainerrors.ProductNotFoundError{ProductID: productID}
	}
	return product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]entities.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.Product, 0, len(s.products))
	for _, product := range s.products {
		items = append(items, product)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// ProcessedCount reports ledger size; used by tests asserting dedup.
func (s *Store) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// PendingOutboxCount reports unpublished outbox rows; used by tests.
func (s *Store) PendingOutboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.outbox {
		if !row.published {
			count++
		}
	}
	return count
}

func cloneOrder(order entities.Order) entities.Order {
	clone := order
	clone.Lines = append([]entities.OrderLine(nil), order.Lines...)
	if order.User != nil {
		owner := *order.User
		clone.User = &owner
	}
	if order.UserID != nil {
		userID := *order.UserID
		clone.UserID = &userID
	}
	if order.ProcessedAt != nil {
		processedAt := *order.ProcessedAt
		clone.ProcessedAt = &processedAt
	}
	return clone
}
