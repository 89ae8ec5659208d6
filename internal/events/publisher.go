// Package events publishes order lifecycle messages. The API, the kitchen
// worker and the tracking hub all speak through Publisher.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-ordering/internal/connections/rabbitmq"
	"restaurant-ordering/internal/domain"
)

type Publisher interface {
	// StatusChanged announces order.created and order.status_changed events.
	StatusChanged(ctx context.Context, msg domain.StatusUpdateMessage) error
	// SendToKitchen queues a paid order for cooking.
	SendToKitchen(ctx context.Context, o domain.Order) error
}

// amqpPublisher is the part of rabbitmq.Client the publisher needs.
type amqpPublisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
}

type RabbitPublisher struct {
	client  amqpPublisher
	source  string
	timeout time.Duration
}

// NewRabbitPublisher tags every message with source in the x-source header.
func NewRabbitPublisher(client amqpPublisher, source string) *RabbitPublisher {
	return &RabbitPublisher{client: client, source: source, timeout: 5 * time.Second}
}

func (p *RabbitPublisher) StatusChanged(ctx context.Context, msg domain.StatusUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	headers := amqp.Table{"x-source": p.source, "x-event": msg.Event}
	if err := p.client.Publish(ctx, rabbitmq.NotificationsExchange, "", body, headers, "application/json", true); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", msg.Event, msg.OrderID, err)
	}
	return nil
}

func (p *RabbitPublisher) SendToKitchen(ctx context.Context, o domain.Order) error {
	body, err := json.Marshal(domain.NewOrderMessage(o))
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	key := rabbitmq.KitchenRoutingKey(string(o.Type))
	if err := p.client.Publish(ctx, rabbitmq.OrdersExchange, key, body, amqp.Table{"x-source": p.source}, "application/json", true); err != nil {
		return fmt.Errorf("failed to publish order %s to kitchen: %w", o.ID, err)
	}
	return nil
}

// Noop drops everything. Used when no broker is configured.
type Noop struct{}

func (Noop) StatusChanged(context.Context, domain.StatusUpdateMessage) error { return nil }
func (Noop) SendToKitchen(context.Context, domain.Order) error               { return nil }

// Multi delivers to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) StatusChanged(ctx context.Context, msg domain.StatusUpdateMessage) error {
	var errs []error
	for _, p := range m {
		if err := p.StatusChanged(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendToKitchen(ctx context.Context, o domain.Order) error {
	var errs []error
	for _, p := range m {
		if err := p.SendToKitchen(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Created builds the order.created event for o.
func Created(o domain.Order, changedBy string) domain.StatusUpdateMessage {
	return domain.StatusUpdateMessage{
		Event:        domain.EventOrderCreated,
		OrderID:      o.ID,
		TicketNumber: o.TicketNumber,
		NewStatus:    o.Status,
		ChangedBy:    changedBy,
		Timestamp:    o.CreatedAt,
	}
}

// Changed builds the order.status_changed event for o moving from old.
func Changed(o domain.Order, old domain.OrderStatus, changedBy string) domain.StatusUpdateMessage {
	return domain.StatusUpdateMessage{
		Event:        domain.EventOrderStatusChanged,
		OrderID:      o.ID,
		TicketNumber: o.TicketNumber,
		OldStatus:    old,
		NewStatus:    o.Status,
		ChangedBy:    changedBy,
		Timestamp:    o.UpdatedAt,
	}
}
