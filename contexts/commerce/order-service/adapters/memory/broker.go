package memory

import (
	"context"
	"sync"

	"fulfillment/contexts/commerce/order-service/ports"
)

// Broker is an in-memory queue for tests. Publish appends, Consume drains
// one message at a time (mirroring prefetch 1), and a nack with requeue
// puts the message back at the front.
type Broker struct {
	mu     sync.Mutex
	queues map[string][][]byte
	// Down simulates a broker outage: every publish reports failure.
	Down bool
}

func NewBroker() *Broker {
	return &Broker{queues: make(map[string][][]byte)}
}

func (b *Broker) Publish(_ context.Context, queue string, body []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Down {
		return false
	}
	b.queues[queue] = append(b.queues[queue], append([]byte(nil), body...))
	return true
}

// Consume drains the queue sequentially and returns once it is empty.
// Messages published by the handler itself (retries) are picked up too.
func (b *Broker) Consume(
	ctx context.Context,
	queue string,
	handler func(context.Context, ports.Delivery),
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		body, ok := b.pop(queue)
		if !ok {
			return nil
		}
		delivery := &Delivery{body: body}
		handler(ctx, delivery)
		if delivery.nacked && delivery.requeued {
			b.pushFront(queue, body)
		}
	}
}

// QueueLen reports messages waiting on the named queue.
func (b *Broker) QueueLen(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

// Messages snapshots the queue contents without consuming them.
func (b *Broker) Messages(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([][]byte, 0, len(b.queues[queue]))
	for _, body := range b.queues[queue] {
		items = append(items, append([]byte(nil), body...))
	}
	return items
}

func (b *Broker) pop(queue string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := b.queues[queue]
	if len(pending) == 0 {
		return nil, false
	}
	b.queues[queue] = pending[1:]
	return pending[0], true
}

func (b *Broker) pushFront(queue string, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[queue] = append([][]byte{body}, b.queues[queue]...)
}

// Delivery records the ack/nack decision so tests can assert on it.
type Delivery struct {
	body     []byte
	acked    bool
	nacked   bool
	requeued bool
}

func NewDelivery(body []byte) *Delivery {
	return &Delivery{body: body}
}

func (d *Delivery) Body() []byte {
	return d.body
}

func (d *Delivery) Ack() {
	d.acked = true
}

func (d *Delivery) Nack(requeue bool) {
	d.nacked = true
	d.requeued = requeue
}

func (d *Delivery) Acked() bool {
	return d.acked
}

func (d *Delivery) Nacked() bool {
	return d.nacked
}

func (d *Delivery) Requeued() bool {
	return d.requeued
}
