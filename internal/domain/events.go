package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderMessage is what the kitchen consumes once an order is paid.
type OrderMessage struct {
	OrderID      string          `json:"order_id"`
	TicketNumber *int            `json:"ticket_number,omitempty"`
	OrderType    OrderType       `json:"order_type"`
	TableNumber  *int            `json:"table_number,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Items        []OrderLine     `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

type StatusUpdateMessage struct {
	Event               string      `json:"event"`
	OrderID             string      `json:"order_id"`
	TicketNumber        *int        `json:"ticket_number,omitempty"`
	OldStatus           OrderStatus `json:"old_status,omitempty"`
	NewStatus           OrderStatus `json:"new_status"`
	ChangedBy           string      `json:"changed_by"`
	Timestamp           time.Time   `json:"timestamp"`
	EstimatedCompletion *time.Time  `json:"estimated_completion,omitempty"`
}

func NewOrderMessage(o Order) OrderMessage {
	return OrderMessage{
		OrderID:      o.ID,
		TicketNumber: o.TicketNumber,
		OrderType:    o.Type,
		TableNumber:  o.TableNumber,
		CustomerName: o.CustomerName,
		Items:        o.Items,
		Total:        o.Total,
	}
}
