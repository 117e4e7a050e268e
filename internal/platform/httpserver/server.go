package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	orderservice "fulfillment/contexts/commerce/order-service"
	orderdomainerrors "fulfillment/contexts/commerce/order-service/domain/errors"
	orderhttp "fulfillment/contexts/commerce/order-service/transport/http"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	orders orderservice.Module
}

func New(orders orderservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		orders: orders,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /orders", s.handleCreateOrder)
	s.mux.HandleFunc("GET /orders", s.handleListOrders)
	s.mux.HandleFunc("GET /orders/{order_id}", s.handleGetOrder)
	s.mux.HandleFunc("GET /orders/user/{user_id}", s.handleListOrdersByUser)
	s.mux.HandleFunc("GET /products", s.handleListProducts)
	s.mux.HandleFunc("GET /products/{product_id}", s.handleGetProduct)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderhttp.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrderError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.orders.Handler.CreateOrderHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orders.Handler.ListOrdersHandler(r.Context())
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(w, r.PathValue("order_id"), "order_id")
	if !ok {
		return
	}
	resp, err := s.orders.Handler.GetOrderHandler(r.Context(), orderID)
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r.PathValue("user_id"), "user_id")
	if !ok {
		return
	}
	resp, err := s.orders.Handler.ListOrdersByUserHandler(r.Context(), userID)
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orders.Handler.ListProductsHandler(r.Context())
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(w, r.PathValue("product_id"), "product_id")
	if !ok {
		return
	}
	resp, err := s.orders.Handler.GetProductHandler(r.Context(), productID)
	if err != nil {
		writeOrderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeOrderDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderdomainerrors.ErrInvalidOrderInput):
		writeOrderError(w, http.StatusBadRequest, "invalid_order_input", err.Error())
	case errors.Is(err, orderdomainerrors.ErrProductNotFound):
		writeOrderError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, orderdomainerrors.ErrOrderNotFound):
		writeOrderError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, orderdomainerrors.ErrInsufficientStock):
		writeOrderError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, orderdomainerrors.ErrIdempotencyConflict):
		writeOrderError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, orderdomainerrors.ErrOrderCreationFailed):
		writeOrderError(w, http.StatusInternalServerError, "order_creation_failed", err.Error())
	default:
		writeOrderError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeOrderError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, orderhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseID(w http.ResponseWriter, raw string, field string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeOrderError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a positive integer")
		return 0, false
	}
	return id, true
}
