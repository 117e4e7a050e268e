package entities

import "time"

// Product stock never goes negative: it is decremented only inside the
// creation transaction, after availability is confirmed under a row lock.
type Product struct {
	ID         int64
	Name       string
	PriceCents int64
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
