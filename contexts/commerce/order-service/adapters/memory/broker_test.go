package memory

import (
	"context"
	"testing"

	"fulfillment/contexts/commerce/order-service/ports"
)

func TestBrokerConsumeStopsOnCancelledContext(t *testing.T) {
	broker := NewBroker()
	broker.Publish(context.Background(), "orders.process", []byte(`{"orderId":1}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handled := 0
	err := broker.Consume(ctx, "orders.process", func(context.Context, ports.Delivery) {
		handled++
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if handled != 0 {
		t.Fatalf("cancelled consumer must not deliver, handled %d", handled)
	}
	if broker.QueueLen("orders.process") != 1 {
		t.Fatalf("undelivered message must stay queued")
	}
}

func TestBrokerRequeuePutsMessageFirst(t *testing.T) {
	broker := NewBroker()
	broker.Publish(context.Background(), "orders.process", []byte("a"))
	broker.Publish(context.Background(), "orders.process", []byte("b"))

	var seen []string
	requeuedOnce := false
	err := broker.Consume(context.Background(), "orders.process", func(_ context.Context, d ports.Delivery) {
		seen = append(seen, string(d.Body()))
		if !requeuedOnce {
			requeuedOnce = true
			d.Nack(true)
			return
		}
		d.Ack()
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	want := []string{"a", "a", "b"}
	if len(seen) != len(want) {
		t.Fatalf("expected deliveries %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected deliveries %v, got %v", want, seen)
		}
	}
}
