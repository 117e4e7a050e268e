package events

import (
	"bytes"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	OrderProcessEventName = "order.created"
	OrderProcessHandler   = "order.process"
)

// FlexInt64 decodes either a JSON number or a numeric JSON string.
// Producers on other stacks serialize orderId both ways.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt64(value)
	return nil
}

// OrderProcessMessage is the queue envelope for order processing events.
// Attempt starts at 1 and travels with the payload across republishes.
type OrderProcessMessage struct {
	MessageID     string    `json:"messageId"`
	OrderID       FlexInt64 `json:"orderId"`
	CreatedAt     time.Time `json:"createdAt"`
	Attempt       int       `json:"attempt"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	EventName     string    `json:"eventName,omitempty"`
}

// OrderDlqMessage augments the envelope for dead-letter inspection.
type OrderDlqMessage struct {
	OrderProcessMessage
	FailedAt time.Time `json:"failedAt"`
	Reason   string    `json:"reason,omitempty"`
}

func NewOrderProcessMessage(orderID int64, producer string, now time.Time) OrderProcessMessage {
	return OrderProcessMessage{
		MessageID:     uuid.NewString(),
		OrderID:       FlexInt64(orderID),
		CreatedAt:     now.UTC(),
		Attempt:       1,
		CorrelationID: uuid.NewString(),
		Producer:      producer,
		EventName:     OrderProcessEventName,
	}
}
