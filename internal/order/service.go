package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/orderingsystem/order-service/internal/cart"
	"github.com/orderingsystem/order-service/internal/event"
)

var (
	ErrCartEmpty     = errors.New("cart is empty")
	ErrSerialization = errors.New("failed to serialize order items")
)

// Service orchestrates the order lifecycle: creation from a cart, payment,
// and status changes. Persistence goes through Repository, cart state through
// the cart client, and downstream notification through the event publisher.
type Service interface {
	CreateOrder(ctx context.Context, userID int64, paymentMethod, deliveryAddress string) (*Order, error)
	ProcessPayment(ctx context.Context, userID, orderID int64) (*Order, error)
	UpdateStatus(ctx context.Context, userID, orderID int64, status string) (*Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]Order, error)
	GetOrdersByStatus(ctx context.Context, status string) ([]Order, error)
	CountAll(ctx context.Context) (int64, error)
	ShardStats(ctx context.Context) ([]ShardStat, error)
}

type service struct {
	repo   Repository
	carts  cart.Client
	events event.Publisher
}

func NewService(repo Repository, carts cart.Client, events event.Publisher) Service {
	return &service{repo: repo, carts: carts, events: events}
}

// CreateOrder turns the user's current cart into a PENDING order on the
// user's shard, clears the cart, and announces the order downstream.
//
// The store write and the cart clear are two independent remote calls with no
// shared transaction. A crash between them leaves the order persisted and the
// cart intact, so the same cart can be ordered twice. Known gap.
func (s *service) CreateOrder(ctx context.Context, userID int64, paymentMethod, deliveryAddress string) (*Order, error) {
	userCart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch cart")
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}
	if userCart == nil || len(userCart.Items) == 0 {
		log.Warn().Int64("user_id", userID).Msg("service: attempt to create order with empty cart")
		return nil, ErrCartEmpty
	}

	items, err := json.Marshal(userCart.Items)
	if err != nil {
		return nil, fmt.Errorf("service: %w: %v", ErrSerialization, err)
	}

	now := time.Now().UTC()
	o := &Order{
		UserID:          userID,
		Items:           string(items),
		TotalAmount:     userCart.TotalAmount,
		Status:          StatusPending,
		PaymentMethod:   paymentMethod,
		DeliveryAddress: deliveryAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Save(ctx, o); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to save order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Int64("order_id", o.ID).
			Msg("service: order saved but cart clear failed")
	}

	s.publish(ctx, event.RouteOrderCreated, CreatedEvent{
		EventID:    newEventID(),
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.TotalAmount,
		OccurredAt: now,
	})

	log.Info().Int64("order_id", o.ID).Int64("user_id", userID).Msg("service: order created")
	return o, nil
}

// ProcessPayment marks the order PAID and publishes the payment and
// notification events. Publishing is fire-and-forget: a publish failure does
// not roll the status back.
func (s *service) ProcessPayment(ctx context.Context, userID, orderID int64) (*Order, error) {
	o, err := s.repo.GetByUserAndID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Int64("order_id", orderID).Int64("user_id", userID).Msg("service: order not found for payment")
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for payment: %w", err)
	}

	now := time.Now().UTC()
	o.Status = StatusPaid
	o.UpdatedAt = now

	if err := s.repo.Save(ctx, o); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Int64("user_id", userID).Msg("service: failed to persist payment")
		return nil, fmt.Errorf("service: failed to process payment: %w", err)
	}

	paid := PaymentEvent{
		EventID:    newEventID(),
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		OccurredAt: now,
	}
	s.publish(ctx, event.RoutePayment, paid)
	s.publish(ctx, event.RouteNotification, paid)

	log.Info().Int64("order_id", orderID).Int64("user_id", userID).Msg("service: payment processed")
	return o, nil
}

// UpdateStatus overwrites the order status unconditionally. Statuses are an
// open set and no transition graph is enforced here.
func (s *service) UpdateStatus(ctx context.Context, userID, orderID int64, status string) (*Order, error) {
	o, err := s.repo.GetByUserAndID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Int64("order_id", orderID).Int64("user_id", userID).Str("status", status).
				Msg("service: order not found for status update")
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for status update: %w", err)
	}

	o.Status = status
	o.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, o); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Str("status", status).Msg("service: failed to update status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Int64("order_id", orderID).Str("status", status).Msg("service: order status updated")
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID int64) (*Order, error) {
	o, err := s.repo.GetByUserAndID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByUser(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) GetOrdersByStatus(ctx context.Context, status string) ([]Order, error) {
	orders, err := s.repo.GetByStatus(ctx, status)
	if err != nil {
		log.Error().Err(err).Str("status", status).Msg("service: failed to fetch orders by status")
		return nil, fmt.Errorf("service: failed to fetch orders by status: %w", err)
	}
	return orders, nil
}

func (s *service) CountAll(ctx context.Context) (int64, error) {
	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count orders: %w", err)
	}
	return count, nil
}

func (s *service) ShardStats(ctx context.Context) ([]ShardStat, error) {
	stats, err := s.repo.ShardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch shard stats: %w", err)
	}
	return stats, nil
}

func (s *service) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("service: failed to publish event")
	}
}
