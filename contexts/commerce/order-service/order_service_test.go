package orderservice_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	orderservice "fulfillment/contexts/commerce/order-service"
	"fulfillment/contexts/commerce/order-service/application/workers"
	"fulfillment/contexts/commerce/order-service/domain/entities"
	domainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	httptransport "fulfillment/contexts/commerce/order-service/transport/http"
)

func newTestModule() orderservice.Module {
	products := []entities.Product{
		{ID: 1, Name: "Mechanical Keyboard", PriceCents: 8900, Stock: 5},
		{ID: 2, Name: "USB Cable", PriceCents: 700, Stock: 10},
	}
	users := []entities.User{
		{ID: 7, Email: "ada@example.com", Name: "Ada"},
	}
	return orderservice.NewInMemoryModule(products, users, nil)
}

func TestCreateOrderComputesTotalAndDecrementsStock(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	resp, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items: []httptransport.CreateOrderLineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if !resp.Created {
		t.Fatalf("expected created=true for a fresh order")
	}
	if resp.Data.Status != string(entities.OrderStatusPending) {
		t.Fatalf("expected pending status, got %s", resp.Data.Status)
	}
	wantTotal := int64(2*8900 + 3*700)
	if resp.Data.TotalCents != wantTotal {
		t.Fatalf("expected total %d, got %d", wantTotal, resp.Data.TotalCents)
	}
	if resp.Data.User == nil || resp.Data.User.ID != 7 {
		t.Fatalf("expected order owner to be hydrated")
	}

	keyboard, err := module.Handler.GetProductHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if keyboard.Data.Stock != 3 {
		t.Fatalf("expected stock 3 after reservation, got %d", keyboard.Data.Stock)
	}

	if got := module.Broker.QueueLen("orders.process"); got != 1 {
		t.Fatalf("expected one queued process message, got %d", got)
	}
	if got := module.Store.PendingOutboxCount(); got != 0 {
		t.Fatalf("expected outbox row marked published, %d still pending", got)
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	req := httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 1}},
	}

	first, err := module.Handler.CreateOrderHandler(ctx, "order-key-1", req)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := module.Handler.CreateOrderHandler(ctx, "order-key-1", req)
	if err != nil {
		t.Fatalf("replayed create failed: %v", err)
	}

	if !first.Created || second.Created {
		t.Fatalf("expected created true then false, got %v and %v", first.Created, second.Created)
	}
	if first.Data.ID != second.Data.ID {
		t.Fatalf("expected replay to return order %d, got %d", first.Data.ID, second.Data.ID)
	}

	product, err := module.Handler.GetProductHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Data.Stock != 4 {
		t.Fatalf("expected a single reservation, stock is %d", product.Data.Stock)
	}
	if got := module.Broker.QueueLen("orders.process"); got != 1 {
		t.Fatalf("expected a single published message, got %d", got)
	}
}

func TestCreateOrderHeaderOverridesBodyKey(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	req := httptransport.CreateOrderRequest{
		UserID:         7,
		IdempotencyKey: "body-key",
		Items:          []httptransport.CreateOrderLineRequest{{ProductID: 2, Quantity: 1}},
	}

	first, err := module.Handler.CreateOrderHandler(ctx, "header-key", req)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	replay, err := module.Handler.CreateOrderHandler(ctx, "header-key", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 2, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("replay via header key failed: %v", err)
	}
	if replay.Created || replay.Data.ID != first.Data.ID {
		t.Fatalf("expected header key to identify the first order")
	}

	// The body key was never registered, so it creates a new order.
	fresh, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID:         7,
		IdempotencyKey: "body-key",
		Items:          []httptransport.CreateOrderLineRequest{{ProductID: 2, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create with body key failed: %v", err)
	}
	if !fresh.Created || fresh.Data.ID == first.Data.ID {
		t.Fatalf("expected the body key to create a distinct order")
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	if _, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 3}},
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 3}},
	})
	if !errors.Is(err, domainerrors.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr domainerrors.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %T", err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 3 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	product, err := module.Handler.GetProductHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Data.Stock != 2 {
		t.Fatalf("rejected order must not touch stock, got %d", product.Data.Stock)
	}
}

func TestCreateOrderDuplicateLinesValidatedCumulatively(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	_, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items: []httptransport.CreateOrderLineRequest{
			{ProductID: 1, Quantity: 3},
			{ProductID: 1, Quantity: 3},
		},
	})
	if !errors.Is(err, domainerrors.ErrInsufficientStock) {
		t.Fatalf("expected cumulative validation to reject, got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	cases := []httptransport.CreateOrderRequest{
		{UserID: 7},
		{UserID: 7, Items: []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 0}}},
		{UserID: 7, Items: []httptransport.CreateOrderLineRequest{{ProductID: 0, Quantity: 1}}},
		{UserID: 7, Items: []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: -2}}},
	}
	for i, req := range cases {
		if _, err := module.Handler.CreateOrderHandler(ctx, "", req); !errors.Is(err, domainerrors.ErrInvalidOrderInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	_, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 99, Quantity: 1}},
	})
	if !errors.Is(err, domainerrors.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestConcurrentCreatesWithSameKeyYieldOneOrder(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	const attempts = 8
	results := make([]httptransport.CreateOrderResponse, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = module.Handler.CreateOrderHandler(ctx, "shared-key", httptransport.CreateOrderRequest{
				UserID: 7,
				Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	created := 0
	var orderID int64
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if orderID == 0 {
			orderID = results[i].Data.ID
		}
		if results[i].Data.ID != orderID {
			t.Fatalf("request %d returned order %d, expected %d", i, results[i].Data.ID, orderID)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one winner, got %d", created)
	}

	product, err := module.Handler.GetProductHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Data.Stock != 4 {
		t.Fatalf("expected a single reservation across the race, stock is %d", product.Data.Stock)
	}
}

func TestConcurrentCreatesNeverOversellStock(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	const attempts = 20
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
				UserID: 7,
				Items:  []httptransport.CreateOrderLineRequest{{ProductID: 2, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < attempts; i++ {
		if errs[i] == nil {
			succeeded++
			continue
		}
		if !errors.Is(errs[i], domainerrors.ErrInsufficientStock) {
			t.Fatalf("request %d: unexpected error %v", i, errs[i])
		}
	}
	if succeeded != 10 {
		t.Fatalf("expected exactly 10 reservations for 10 units, got %d", succeeded)
	}

	product, err := module.Handler.GetProductHandler(ctx, 2)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Data.Stock != 0 {
		t.Fatalf("expected stock exhausted, got %d", product.Data.Stock)
	}
}

func TestPublishFailureLeavesOutboxPendingForRelay(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	module.Broker.Down = true
	resp, err := module.Handler.CreateOrderHandler(ctx, "outage-key", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("creation must survive a broker outage: %v", err)
	}
	if !resp.Created {
		t.Fatalf("expected order to be created during outage")
	}
	if got := module.Store.PendingOutboxCount(); got != 1 {
		t.Fatalf("expected one pending outbox row, got %d", got)
	}
	if got := module.Broker.QueueLen("orders.process"); got != 0 {
		t.Fatalf("expected no queued message during outage, got %d", got)
	}

	module.Broker.Down = false
	relay := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: module.Broker,
		Clock:     module.Store,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	if got := module.Store.PendingOutboxCount(); got != 0 {
		t.Fatalf("expected outbox drained, %d still pending", got)
	}
	if got := module.Broker.QueueLen("orders.process"); got != 1 {
		t.Fatalf("expected relay to publish the message, queue has %d", got)
	}
}

func TestListOrdersAndLookup(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	first, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		UserID: 7,
		Items:  []httptransport.CreateOrderLineRequest{{ProductID: 1, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	second, err := module.Handler.CreateOrderHandler(ctx, "", httptransport.CreateOrderRequest{
		Items: []httptransport.CreateOrderLineRequest{{ProductID: 2, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create anonymous order failed: %v", err)
	}

	got, err := module.Handler.GetOrderHandler(ctx, first.Data.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if len(got.Data.Lines) != 1 || got.Data.Lines[0].UnitPriceCents != 8900 {
		t.Fatalf("expected hydrated line with price snapshot, got %+v", got.Data.Lines)
	}

	all, err := module.Handler.ListOrdersHandler(ctx)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(all.Data) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all.Data))
	}
	if all.Data[0].ID != second.Data.ID {
		t.Fatalf("expected newest order first, got %d", all.Data[0].ID)
	}

	mine, err := module.Handler.ListOrdersByUserHandler(ctx, 7)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(mine.Data) != 1 || mine.Data[0].ID != first.Data.ID {
		t.Fatalf("expected only the user's order, got %+v", mine.Data)
	}

	if _, err := module.Handler.GetOrderHandler(ctx, 404); !errors.Is(err, domainerrors.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}
