// Package pricing recomputes order totals from catalog prices and settles
// loyalty points. Client-submitted prices never reach this package.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-ordering/internal/domain"
)

const (
	MaxLines    = 50
	MaxQuantity = 99
)

// Rules holds the loyalty conversion rates.
// PointValue is the currency value of one redeemed point,
// PointsPerAmount is the spend that earns one point.
type Rules struct {
	PointValue      decimal.Decimal
	PointsPerAmount decimal.Decimal
}

func DefaultRules() Rules {
	return Rules{
		PointValue:      decimal.NewFromInt(1),
		PointsPerAmount: decimal.NewFromInt(10),
	}
}

func (r Rules) Validate() error {
	if !r.PointValue.IsPositive() {
		return fmt.Errorf("point value must be positive, got %s", r.PointValue)
	}
	if !r.PointsPerAmount.IsPositive() {
		return fmt.Errorf("points per amount must be positive, got %s", r.PointsPerAmount)
	}
	return nil
}

type Quote struct {
	Lines             []domain.OrderLine
	Subtotal          decimal.Decimal
	UsedPoints        int64
	Discount          decimal.Decimal
	Total             decimal.Decimal
	EarnedPoints      int64
	MemberPointsAfter *int64
}

func (q Quote) Response() domain.QuoteResponse {
	return domain.QuoteResponse{
		Items:             q.Lines,
		Subtotal:          q.Subtotal,
		UsedPoints:        q.UsedPoints,
		Discount:          q.Discount,
		Total:             q.Total,
		EarnedPoints:      q.EarnedPoints,
		MemberPointsAfter: q.MemberPointsAfter,
	}
}

// Settle prices items against catalog and applies redemption and accrual for member.
// member may be nil, in which case no points are used or earned.
func Settle(catalog map[string]domain.MenuItem, items []domain.OrderItemInput, member *domain.Member, requestedPoints int64, rules Rules) (Quote, error) {
	if err := rules.Validate(); err != nil {
		return Quote{}, err
	}
	if len(items) == 0 {
		return Quote{}, domain.NewValidationError("items", "order must contain at least one item")
	}
	if len(items) > MaxLines {
		return Quote{}, domain.NewValidationError("items", fmt.Sprintf("a maximum of %d lines is allowed", MaxLines))
	}

	q := Quote{Lines: make([]domain.OrderLine, 0, len(items)), Subtotal: decimal.Zero}
	for i, in := range items {
		line, err := priceLine(catalog, in, i)
		if err != nil {
			return Quote{}, err
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal = q.Subtotal.Add(line.LineTotal)
	}

	if member != nil {
		q.UsedPoints = redeemable(q.Subtotal, member.Points, requestedPoints, rules.PointValue)
	}
	q.Discount = rules.PointValue.Mul(decimal.NewFromInt(q.UsedPoints))
	q.Total = q.Subtotal.Sub(q.Discount)

	if member != nil {
		q.EarnedPoints = q.Total.Div(rules.PointsPerAmount).Floor().IntPart()
		after := member.Points - q.UsedPoints + q.EarnedPoints
		q.MemberPointsAfter = &after
	}
	return q, nil
}

func priceLine(catalog map[string]domain.MenuItem, in domain.OrderItemInput, idx int) (domain.OrderLine, error) {
	field := fmt.Sprintf("items[%d]", idx)
	if in.MenuItemID == "" {
		return domain.OrderLine{}, domain.NewValidationError(field+".menu_item_id", "menu item id is required")
	}
	if in.Quantity <= 0 {
		return domain.OrderLine{}, domain.NewValidationError(field+".quantity", "quantity must be greater than 0")
	}
	if in.Quantity > MaxQuantity {
		return domain.OrderLine{}, domain.NewValidationError(field+".quantity", fmt.Sprintf("quantity must be at most %d", MaxQuantity))
	}
	item, ok := catalog[in.MenuItemID]
	if !ok {
		return domain.OrderLine{}, domain.NewValidationError(field+".menu_item_id", fmt.Sprintf("unknown menu item %q", in.MenuItemID))
	}
	if !item.Available {
		return domain.OrderLine{}, domain.NewValidationError(field+".menu_item_id", fmt.Sprintf("menu item %q is not available", item.Name))
	}
	return domain.OrderLine{
		MenuItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  item.Price,
		Quantity:   in.Quantity,
		LineTotal:  item.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
	}, nil
}

// redeemable = min(requested, balance, floor(subtotal / pointValue)), never negative.
func redeemable(subtotal decimal.Decimal, balance, requested int64, pointValue decimal.Decimal) int64 {
	if requested <= 0 || balance <= 0 {
		return 0
	}
	limit := subtotal.Div(pointValue).Floor().IntPart()
	used := min(requested, balance, limit)
	if used < 0 {
		return 0
	}
	return used
}
