// Package event publishes order events to the message broker. Delivery is
// at-least-once and fire-and-forget from the order service's point of view;
// consumers must tolerate duplicates.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/orderingsystem/order-service/internal/config"
)

// Routing keys on the order exchange. One durable queue is bound per key.
const (
	RouteOrderCreated = "order.created"
	RoutePayment      = "order.payment"
	RouteNotification = "order.notification"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type rabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitPublisher connects to the broker and declares the topic exchange
// and the durable queues downstream consumers read from.
func NewRabbitPublisher(cfg config.RabbitConfig) (Publisher, func(), error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("event: failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("event: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("event: failed to declare exchange: %w", err)
	}

	bindings := map[string]string{
		"order-queue":        RouteOrderCreated,
		"payment-queue":      RoutePayment,
		"notification-queue": RouteNotification,
	}
	for queue, key := range bindings {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("event: failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, key, cfg.Exchange, false, nil); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("event: failed to bind queue %s: %w", queue, err)
		}
	}

	p := &rabbitPublisher{conn: conn, exchange: cfg.Exchange, ch: ch}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("event: failed to close broker connection")
		}
	}

	log.Info().Str("exchange", cfg.Exchange).Msg("Connected to RabbitMQ")
	return p, cleanup, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event: failed to marshal payload for %s: %w", routingKey, err)
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("event: failed to publish %s: %w", routingKey, err)
	}

	return nil
}
