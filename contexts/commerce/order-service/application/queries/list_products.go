package queries

import (
	"context"

	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	"fulfillment/contexts/commerce/order-service/ports"
)

type GetProductUseCase struct {
	Products ports.ProductRepository
}

func (uc GetProductUseCase) Execute(ctx context.Context, productID int64) (entities.Product, error) {
	if productID <= 0 {
		return entities.Product{}, domainerrors.ProductNotFoundError{ProductID: productID}
	}
	return uc.Products.GetProduct(ctx, productID)
}

type ListProductsUseCase struct {
	Products ports.ProductRepository
}

func (uc ListProductsUseCase) Execute(ctx context.Context) ([]entities.Product, error) {
	return uc.Products.ListProducts(ctx)
}
