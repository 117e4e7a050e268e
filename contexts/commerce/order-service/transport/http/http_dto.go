package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OrderLineDTO struct {
	ID             int64 `json:"id"`
	ProductID      int64 `json:"product_id"`
	Quantity       int   `json:"quantity"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

type OrderUserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type OrderDTO struct {
	ID              int64          `json:"id"`
	Status          string         `json:"status"`
	TotalCents      int64          `json:"total_cents"`
	ShippingAddress string         `json:"shipping_address,omitempty"`
	User            *OrderUserDTO  `json:"user,omitempty"`
	Lines           []OrderLineDTO `json:"items"`
	ProcessedAt     string         `json:"processed_at,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

type CreateOrderLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID          int64                    `json:"user_id"`
	ShippingAddress string                   `json:"shipping_address,omitempty"`
	Items           []CreateOrderLineRequest `json:"items"`
	IdempotencyKey  string                   `json:"idempotency_key,omitempty"`
}

type CreateOrderResponse struct {
	Data    OrderDTO `json:"data"`
	Created bool     `json:"created"`
	Message string   `json:"message"`
}

type GetOrderResponse struct {
	Data OrderDTO `json:"data"`
}

type ListOrdersResponse struct {
	Data []OrderDTO `json:"data"`
}

type ProductDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type GetProductResponse struct {
	Data ProductDTO `json:"data"`
}

type ListProductsResponse struct {
	Data []ProductDTO `json:"data"`
}
