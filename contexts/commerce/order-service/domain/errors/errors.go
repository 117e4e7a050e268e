package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrderInput   = errors.New("invalid order input")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderNotFound       = errors.New("order not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrOrderCreationFailed = errors.New("failed to create order, please try again later")
)

// ProductNotFoundError names the missing product id so callers can report
// which line of the request failed. Unwraps to ErrProductNotFound.
type ProductNotFoundError struct {
	ProductID int64
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with id %d not found", e.ProductID)
}

func (e ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// InsufficientStockError reports the stock observed under lock versus the
// requested quantity. Unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %s. available: %d, requested: %d",
		e.ProductName, e.Available, e.Requested,
	)
}

func (e InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
