package orderservice

import (
	"log/slog"
	"time"

	httpadapter "fulfillment/contexts/commerce/order-service/adapters/http"
	"fulfillment/contexts/commerce/order-service/adapters/memory"
	"fulfillment/contexts/commerce/order-service/application/commands"
	"fulfillment/contexts/commerce/order-service/application/queries"
	"fulfillment/contexts/commerce/order-service/application/workers"
	"fulfillment/contexts/commerce/order-service/domain/entities"
	"fulfillment/contexts/commerce/order-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Broker  *memory.Broker
}

type Dependencies struct {
	Orders       ports.OrderRepository
	Products     ports.ProductRepository
	Outbox       ports.OutboxRepository
	Publisher    ports.QueuePublisher
	Clock        ports.Clock
	ProcessQueue string
	Producer     string
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createOrder := commands.CreateOrderUseCase{
		Orders:       deps.Orders,
		Outbox:       deps.Outbox,
		Publisher:    deps.Publisher,
		Clock:        deps.Clock,
		ProcessQueue: deps.ProcessQueue,
		Producer:     deps.Producer,
		Logger:       deps.Logger,
	}
	getOrder := queries.GetOrderUseCase{Orders: deps.Orders}
	listOrders := queries.ListOrdersUseCase{Orders: deps.Orders}
	listOrdersByUser := queries.ListOrdersByUserUseCase{Orders: deps.Orders}
	getProduct := queries.GetProductUseCase{Products: deps.Products}
	listProducts := queries.ListProductsUseCase{Products: deps.Products}

	return Module{
		Handler: httpadapter.Handler{
			CreateOrder:      createOrder,
			GetOrder:         getOrder,
			ListOrders:       listOrders,
			ListOrdersByUser: listOrdersByUser,
			GetProduct:       getProduct,
			ListProducts:     listProducts,
			Logger:           deps.Logger,
		},
	}
}

// ProcessorDependencies wires the queue consumer side of the context.
type ProcessorDependencies struct {
	Consumer       ports.QueueConsumer
	Publisher      ports.QueuePublisher
	Orders         ports.ProcessingRepository
	Clock          ports.Clock
	ProcessQueue   string
	DlqQueue       string
	MaxAttempts    int
	RetryDelay     time.Duration
	SimulatedDelay time.Duration
	Logger         *slog.Logger
}

func NewOrderProcessor(deps ProcessorDependencies) workers.OrderProcessor {
	return workers.OrderProcessor{
		Consumer:       deps.Consumer,
		Publisher:      deps.Publisher,
		Orders:         deps.Orders,
		Clock:          deps.Clock,
		ProcessQueue:   deps.ProcessQueue,
		DlqQueue:       deps.DlqQueue,
		MaxAttempts:    deps.MaxAttempts,
		RetryDelay:     deps.RetryDelay,
		SimulatedDelay: deps.SimulatedDelay,
		Logger:         deps.Logger,
	}
}

// NewInMemoryModule wires the module against the in-memory store and broker.
// Used by tests and local development without postgres or rabbitmq.
func NewInMemoryModule(products []entities.Product, users []entities.User, logger *slog.Logger) Module {
	store := memory.NewStore(products, users)
	broker := memory.NewBroker()
	module := NewModule(Dependencies{
		Orders:    store,
		Products:  store,
		Outbox:    store,
		Publisher: broker,
		Clock:     store,
		Producer:  "order-service",
		Logger:    logger,
	})
	module.Store = store
	module.Broker = broker
	return module
}
