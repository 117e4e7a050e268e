package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fulfillment/contexts/commerce/order-service/application/commands"
	"fulfillment/contexts/commerce/order-service/application/queries"
	"fulfillment/contexts/commerce/order-service/domain/entities"
	httptransport "fulfillment/contexts/commerce/order-service/transport/http"
)

type Handler struct {
	CreateOrder      commands.CreateOrderUseCase
	GetOrder         queries.GetOrderUseCase
	ListOrders       queries.ListOrdersUseCase
	ListOrdersByUser queries.ListOrdersByUserUseCase
	GetProduct       queries.GetProductUseCase
	ListProducts     queries.ListProductsUseCase
	Logger           *slog.Logger
}

// CreateOrderHandler resolves the idempotency key (the transport header
// overrides the body field) and maps the result onto the response envelope.
func (h Handler) CreateOrderHandler(
	ctx context.Context,
	idempotencyKeyHeader string,
	req httptransport.CreateOrderRequest,
) (httptransport.CreateOrderResponse, error) {
	key := strings.TrimSpace(idempotencyKeyHeader)
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	cmd := commands.CreateOrderCommand{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  key,
	}
	for _, item := range req.Items {
		cmd.Lines = append(cmd.Lines, commands.CreateOrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.CreateOrder.Execute(ctx, cmd)
	if err != nil {
		return httptransport.CreateOrderResponse{}, err
	}

	message := "Order created successfully"
	if !result.Created {
		message = "Order already exists (idempotent response)"
	}
	return httptransport.CreateOrderResponse{
		Data:    toOrderDTO(result.Order),
		Created: result.Created,
		Message: message,
	}, nil
}

func (h Handler) GetOrderHandler(ctx context.Context, orderID int64) (httptransport.GetOrderResponse, error) {
	order, err := h.GetOrder.Execute(ctx, orderID)
	if err != nil {
		return httptransport.GetOrderResponse{}, err
	}
	return httptransport.GetOrderResponse{Data: toOrderDTO(order)}, nil
}

func (h Handler) ListOrdersHandler(ctx context.Context) (httptransport.ListOrdersResponse, error) {
	orders, err := h.ListOrders.Execute(ctx)
	if err != nil {
		return httptransport.ListOrdersResponse{}, err
	}
	return httptransport.ListOrdersResponse{Data: toOrderDTOs(orders)}, nil
}

func (h Handler) ListOrdersByUserHandler(ctx context.Context, userID int64) (httptransport.ListOrdersResponse, error) {
	orders, err := h.ListOrdersByUser.Execute(ctx, userID)
	if err != nil {
		return httptransport.ListOrdersResponse{}, err
	}
	return httptransport.ListOrdersResponse{Data: toOrderDTOs(orders)}, nil
}

func (h Handler) GetProductHandler(ctx context.Context, productID int64) (httptransport.GetProductResponse, error) {
	product, err := h.GetProduct.Execute(ctx, productID)
	if err != nil {
		return httptransport.GetProductResponse{}, err
	}
	return httptransport.GetProductResponse{Data: toProductDTO(product)}, nil
}

func (h Handler) ListProductsHandler(ctx context.Context) (httptransport.ListProductsResponse, error) {
	products, err := h.ListProducts.Execute(ctx)
	if err != nil {
		return httptransport.ListProductsResponse{}, err
	}
	resp := httptransport.ListProductsResponse{Data: make([]httptransport.ProductDTO, 0, len(products))}
	for _, product := range products {
		resp.Data = append(resp.Data, toProductDTO(product))
	}
	return resp, nil
}

func toOrderDTOs(orders []entities.Order) []httptransport.OrderDTO {
	items := make([]httptransport.OrderDTO, 0, len(orders))
	for _, order := range orders {
		items = append(items, toOrderDTO(order))
	}
	return items
}

func toOrderDTO(order entities.Order) httptransport.OrderDTO {
	dto := httptransport.OrderDTO{
		ID:              order.ID,
		Status:          string(order.Status),
		TotalCents:      order.TotalCents,
		ShippingAddress: order.ShippingAddress,
		Lines:           make([]httptransport.OrderLineDTO, 0, len(order.Lines)),
		CreatedAt:       order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if order.ProcessedAt != nil {
		dto.ProcessedAt = order.ProcessedAt.UTC().Format(time.RFC3339)
	}
	if order.User != nil {
		dto.User = &httptransport.OrderUserDTO{
			ID:    order.User.ID,
			Email: order.User.Email,
			Name:  order.User.Name,
		}
	}
	for _, line := range order.Lines {
		dto.Lines = append(dto.Lines, httptransport.OrderLineDTO{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	return dto
}

func toProductDTO(product entities.Product) httptransport.ProductDTO {
	return httptransport.ProductDTO{
		ID:         product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Stock:      product.Stock,
	}
}
