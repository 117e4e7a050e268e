package entities

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusProcessed  OrderStatus = "processed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the aggregate produced by the creation transaction.
// TotalCents always equals the sum of line subtotals at creation time;
// line prices are snapshots, never re-read from products afterwards.
type Order struct {
	ID              int64
	IdempotencyKey  string
	Status          OrderStatus
	TotalCents      int64
	ShippingAddress string
	UserID          *int64
	User            *User
	Lines           []OrderLine
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLine is immutable once the creation transaction commits.
type OrderLine struct {
	ID             int64
	OrderID        int64
	ProductID      int64
	Quantity       int
	UnitPriceCents int64
	CreatedAt      time.Time
}

type User struct {
	ID    int64
	Email string
	Name  string
}
