package postgresadapter

import (
	"time"

	"fulfillment/contexts/commerce/order-service/domain/entities"
)

type productModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	Name       string    `gorm:"column:name"`
	PriceCents int64     `gorm:"column:price_cents"`
	Stock      int       `gorm:"column:stock"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (productModel) TableName() string {
	return "products"
}

func (m productModel) toEntity() entities.Product {
	return entities.Product{
		ID:         m.ID,
		Name:       m.Name,
		PriceCents: m.PriceCents,
		Stock:      m.Stock,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type orderModel struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	IdempotencyKey  *string    `gorm:"column:idempotency_key;uniqueIndex"`
	Status          string     `gorm:"column:status"`
	TotalCents      int64      `gorm:"column:total_cents"`
	ShippingAddress string     `gorm:"column:shipping_address"`
	UserID          *int64     `gorm:"column:user_id"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (orderModel) TableName() string {
	return "orders"
}

func (m orderModel) toEntity() entities.Order {
	order := entities.Order{
		ID:              m.ID,
		Status:          entities.OrderStatus(m.Status),
		TotalCents:      m.TotalCents,
		ShippingAddress: m.ShippingAddress,
		UserID:          m.UserID,
		ProcessedAt:     normalizeOptionalTime(m.ProcessedAt),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.IdempotencyKey != nil {
		order.IdempotencyKey = *m.IdempotencyKey
	}
	return order
}

type orderLineModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        int64     `gorm:"column:order_id"`
	ProductID      int64     `gorm:"column:product_id"`
	Quantity       int       `gorm:"column:quantity"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (orderLineModel) TableName() string {
	return "order_lines"
}

func (m orderLineModel) toEntity() entities.OrderLine {
	return entities.OrderLine{
		ID:             m.ID,
		OrderID:        m.OrderID,
		ProductID:      m.ProductID,
		Quantity:       m.Quantity,
		UnitPriceCents: m.UnitPriceCents,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type processedMessageModel struct {
	MessageID   string    `gorm:"column:message_id;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	OrderID     int64     `gorm:"column:order_id"`
	Handler     string    `gorm:"column:handler"`
}

func (processedMessageModel) TableName() string {
	return "processed_messages"
}

type outboxModel struct {
	MessageID   string     `gorm:"column:message_id;primaryKey"`
	Queue       string     `gorm:"column:queue"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "order_outbox"
}

type userModel struct {
	ID    int64  `gorm:"column:id;primaryKey"`
	Email string `gorm:"column:email"`
	Name  string `gorm:"column:name"`
}

func (userModel) TableName() string {
	return "users"
}

func (m userModel) toEntity() entities.User {
	return entities.User{
		ID:    m.ID,
		Email: m.Email,
		Name:  m.Name,
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
