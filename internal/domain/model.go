package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as plain JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPaid           OrderStatus = "PAID"
	StatusCooking        OrderStatus = "COOKING"
	StatusReady          OrderStatus = "READY"
	StatusDone           OrderStatus = "DONE"
	StatusCancelled      OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	StatusPendingPayment, StatusPaid, StatusCooking, StatusReady, StatusDone, StatusCancelled,
}

// OrderStatuses lists every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// Valid reports whether s is a known status. Any known status may follow any other.
func (s OrderStatus) Valid() bool {
	for _, st := range orderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

type OrderType string

const (
	OrderTypeDineIn  OrderType = "dine_in"
	OrderTypeTakeout OrderType = "takeout"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeDineIn || t == OrderTypeTakeout
}

type MenuItem struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Image       string          `json:"image,omitempty" db:"image"`
	Description string          `json:"description,omitempty" db:"description"`
	Tags        []string        `json:"tags" db:"-"`
	Available   bool            `json:"available" db:"available"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type Member struct {
	Phone     string    `json:"phone" db:"phone"`
	Name      string    `json:"name" db:"name"`
	Points    int64     `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Order struct {
	ID           string          `json:"id" db:"id"`
	TicketNumber *int            `json:"ticket_number,omitempty" db:"ticket_number"`
	Type         OrderType       `json:"order_type" db:"order_type"`
	TableNumber  *int            `json:"table_number,omitempty" db:"table_number"`
	MemberPhone  *string         `json:"member_phone,omitempty" db:"member_phone"`
	CustomerName string          `json:"customer_name,omitempty" db:"customer_name"`
	Note         string          `json:"note,omitempty" db:"note"`
	Items        []OrderLine     `json:"items" db:"-"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	UsedPoints   int64           `json:"used_points" db:"used_points"`
	Discount     decimal.Decimal `json:"discount" db:"discount"`
	Total        decimal.Decimal `json:"total" db:"total"`
	EarnedPoints int64           `json:"earned_points" db:"earned_points"`
	Status       OrderStatus     `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderLine is priced from the catalog at the time the order was placed.
type OrderLine struct {
	MenuItemID string          `json:"menu_item_id" db:"menu_item_id"`
	Name       string          `json:"name" db:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity   int             `json:"quantity" db:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total" db:"line_total"`
}

type StatusChange struct {
	OrderID   string      `json:"order_id" db:"order_id"`
	From      OrderStatus `json:"from,omitempty" db:"from_status"`
	To        OrderStatus `json:"to" db:"to_status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time   `json:"changed_at" db:"changed_at"`
}

type Worker struct {
	Name            string    `json:"worker_name" db:"name"`
	Status          string    `json:"status" db:"status"` // online | offline
	OrdersProcessed int       `json:"orders_processed" db:"orders_processed"`
	LastSeen        time.Time `json:"last_seen" db:"last_seen"`
}
