package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexInt64AcceptsNumberAndString(t *testing.T) {
	var fromNumber OrderProcessMessage
	if err := json.Unmarshal([]byte(`{"messageId":"m1","orderId":42,"attempt":1}`), &fromNumber); err != nil {
		t.Fatalf("unmarshal numeric orderId: %v", err)
	}
	if fromNumber.OrderID != 42 {
		t.Fatalf("expected orderId 42, got %d", fromNumber.OrderID)
	}

	var fromString OrderProcessMessage
	if err := json.Unmarshal([]byte(`{"messageId":"m2","orderId":"1337","attempt":2}`), &fromString); err != nil {
		t.Fatalf("unmarshal string orderId: %v", err)
	}
	if fromString.OrderID != 1337 {
		t.Fatalf("expected orderId 1337, got %d", fromString.OrderID)
	}

	var invalid OrderProcessMessage
	if err := json.Unmarshal([]byte(`{"orderId":"not-a-number"}`), &invalid); err == nil {
		t.Fatalf("expected error for non-numeric orderId")
	}
}

func TestNewOrderProcessMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewOrderProcessMessage(9, "order-service", now)

	if msg.MessageID == "" || msg.CorrelationID == "" {
		t.Fatalf("expected generated identifiers")
	}
	if msg.Attempt != 1 {
		t.Fatalf("attempt must start at 1, got %d", msg.Attempt)
	}
	if msg.EventName != OrderProcessEventName {
		t.Fatalf("unexpected event name %q", msg.EventName)
	}
	if !msg.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %s, got %s", now, msg.CreatedAt)
	}

	other := NewOrderProcessMessage(9, "order-service", now)
	if other.MessageID == msg.MessageID {
		t.Fatalf("message ids must be unique per publish")
	}
}
