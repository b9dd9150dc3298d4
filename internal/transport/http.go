package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderingsystem/order-service/internal/handler"
	"github.com/orderingsystem/order-service/internal/order"
)

func NewRouter(svc order.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	h := handler.NewOrderHandler(svc)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Get("/user/{userID}", h.GetUserOrders)
		r.Get("/status/{status}", h.GetOrdersByStatus)
		r.Post("/{id}/payment", h.ProcessPayment)
		r.Put("/{id}/status", h.UpdateStatus)
		r.Get("/sharding/stats", h.GetShardingStats)
	})

	return r
}
