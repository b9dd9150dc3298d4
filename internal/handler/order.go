package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/orderingsystem/order-service/internal/order"
	"github.com/orderingsystem/order-service/internal/shard"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc order.Service
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type createOrderRequest struct {
	UserID          int64  `json:"user_id"`
	PaymentMethod   string `json:"payment_method"`
	DeliveryAddress string `json:"delivery_address"`
}

// CreateOrder places a new order from the user's current cart.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), req.UserID, req.PaymentMethod, req.DeliveryAddress)
	if err != nil {
		log.Info().Msgf("Failed to create order: %v", err)
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, o)
}

// GetOrder returns one order. The user_id query parameter is mandatory:
// order ids are shard-local, so an id without its owner cannot be routed.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(w, chi.URLParam(r, "id"), "order id")
	if !ok {
		return
	}
	userID, ok := parseID(w, r.URL.Query().Get("user_id"), "user_id")
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// GetUserOrders returns all orders for a user, newest first.
func (h *OrderHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, chi.URLParam(r, "userID"), "user id")
	if !ok {
		return
	}

	orders, err := h.svc.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// GetOrdersByStatus runs the scatter-gather read across every shard.
func (h *OrderHandler) GetOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")
	if status == "" {
		respondWithError(w, http.StatusBadRequest, "status is required")
		return
	}

	orders, err := h.svc.GetOrdersByStatus(r.Context(), status)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

type paymentRequest struct {
	UserID int64 `json:"user_id"`
}

// ProcessPayment marks an order as paid.
func (h *OrderHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(w, chi.URLParam(r, "id"), "order id")
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	o, err := h.svc.ProcessPayment(r.Context(), req.UserID, orderID)
	if err != nil {
		log.Info().Msgf("Failed to process payment: %v", err)
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

type updateStatusRequest struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// UpdateStatus overwrites an order's status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(w, chi.URLParam(r, "id"), "order id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 || req.Status == "" {
		respondWithError(w, http.StatusBadRequest, "user_id and status are required")
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), req.UserID, orderID, req.Status)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// GetShardingStats reports per-shard row counts and the routing strategy.
func (h *OrderHandler) GetShardingStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.CountAll(r.Context())
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	stats, err := h.svc.ShardStats(r.Context())
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"totalOrders":          total,
		"numberOfShards":       len(stats),
		"shardDetails":         stats,
		"shardingStrategy":     "hash-based on user_id modulo shard count",
		"partitioningStrategy": "range partitioning by created_year",
	})
}

func parseID(w http.ResponseWriter, raw, name string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrCartEmpty):
		return http.StatusBadRequest
	case errors.Is(err, shard.ErrShardUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
