package queries

import (
	"context"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
)

type ListOrdersUseCase struct {
	Orders ports.OrderRepository
}

func (uc ListOrdersUseCase) Execute(ctx context.Context) ([]entities.Order, error) {
	return uc.Orders.ListOrders(ctx)
}

type ListOrdersByUserUseCase struct {
	Orders ports.OrderRepository
}

func (uc ListOrdersByUserUseCase) Execute(ctx context.Context, userID int64) ([]entities.Order, error) {
	if userID <= 0 {
		return nil, domainerrors.ErrInvalidOrderInput
	}
	return uc.Orders.ListOrdersByUser(ctx, userID)
}
