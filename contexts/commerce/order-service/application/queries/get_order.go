package queries

import (
	"context"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
)

type GetOrderUseCase struct {
	Orders ports.OrderRepository
}

func (uc GetOrderUseCase) Execute(ctx context.Context, orderID int64) (entities.Order, error) {
	if orderID <= 0 {
		return entities.Order{}, domainerrors.ErrOrderNotFound
	}
	return uc.Orders.GetOrder(ctx, orderID)
}
