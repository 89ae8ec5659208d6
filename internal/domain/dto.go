package domain

import "github.com/shopspring/decimal"

type CreateMenuItemRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Available   *bool           `json:"available,omitempty"`
}

// UpdateMenuItemRequest is a partial update; nil fields are left unchanged.
type UpdateMenuItemRequest struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Description *string          `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Available   *bool            `json:"available,omitempty"`
}

type RegisterMemberRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type AdjustPointsRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type OrderItemInput struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// CreateOrderRequest carries no prices: totals are always recomputed from the catalog.
type CreateOrderRequest struct {
	OrderType    OrderType        `json:"order_type"`
	TableNumber  *int             `json:"table_number,omitempty"`
	MemberPhone  string           `json:"member_phone,omitempty"`
	CustomerName string           `json:"customer_name,omitempty"`
	Note         string           `json:"note,omitempty"`
	UsePoints    int64            `json:"use_points,omitempty"`
	Items        []OrderItemInput `json:"items"`
}

type QuoteResponse struct {
	Items             []OrderLine     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	UsedPoints        int64           `json:"used_points"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	EarnedPoints      int64           `json:"earned_points"`
	MemberPointsAfter *int64          `json:"member_points_after,omitempty"`
}

type UpdateStatusRequest struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by,omitempty"`
}

type TrackingResponse struct {
	OrderID      string         `json:"order_id"`
	TicketNumber *int           `json:"ticket_number,omitempty"`
	Status       OrderStatus    `json:"status"`
	UpdatedAt    string         `json:"updated_at"`
	Timeline     []StatusChange `json:"timeline"`
}
