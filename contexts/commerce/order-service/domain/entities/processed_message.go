package entities

import "time"

// ProcessedMessage is the consumer-side ledger row. Its primary-key
// uniqueness on MessageID turns at-least-once delivery into
// effectively-once processing. Rows are never updated or deleted.
type ProcessedMessage struct {
	MessageID   string
	ProcessedAt time.Time
	OrderID     int64
	Handler     string
}
