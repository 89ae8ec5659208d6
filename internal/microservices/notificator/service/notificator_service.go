package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/connections/rabbitmq"
	"restaurant-ordering/internal/domain"
)

type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error)
}

type NotificatorService struct {
	consumer Consumer
	lg       *logger.Logger
}

func NewNotificatorService(consumer Consumer, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{consumer: consumer, lg: lg}
}

// Notify logs every status change from the notifications queue until ctx ends.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	msgs, err := ns.consumer.Consume(rabbitmq.NotificationsQueue, "notificator", 10)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.NotificationsQueue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("notification deliveries channel closed")
			}
			if err := ns.Handle(d.Body); err != nil {
				ns.lg.Warn("notification_rejected", map[string]any{"message_id": d.MessageId, "error": err.Error()})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes and logs one status update.
func (ns *NotificatorService) Handle(body []byte) error {
	var msg domain.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode status update: %w", err)
	}
	if msg.OrderID == "" || msg.NewStatus == "" {
		return errors.New("status update without order id or status")
	}
	fields := map[string]any{
		"event":      msg.Event,
		"order_id":   msg.OrderID,
		"old_status": msg.OldStatus,
		"new_status": msg.NewStatus,
		"changed_by": msg.ChangedBy,
		"timestamp":  msg.Timestamp,
	}
	if msg.TicketNumber != nil {
		fields["ticket_number"] = *msg.TicketNumber
	}
	ns.lg.Info("notification_received", fields)
	return nil
}
