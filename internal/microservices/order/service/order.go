package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/common/metrics"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/events"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxNoteLen       = 500
)

type OrderServiceInterface interface {
	Quote(ctx context.Context, req domain.CreateOrderRequest) (pricing.Quote, error)
	Place(ctx context.Context, req domain.CreateOrderRequest, actor string) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error)
	History(ctx context.Context, id string) ([]domain.StatusChange, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, actor string) (domain.Order, error)
}

type OrderService struct {
	store   repository.Store
	tickets ticket.Sequencer
	pub     events.Publisher
	rules   pricing.Rules
	lg      *logger.Logger
	now     func() time.Time
}

func NewOrderService(store repository.Store, tickets ticket.Sequencer, pub events.Publisher, rules pricing.Rules, lg *logger.Logger) *OrderService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &OrderService{
		store:   store,
		tickets: tickets,
		pub:     pub,
		rules:   rules,
		lg:      lg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Quote settles req against the current catalog without persisting anything.
func (s *OrderService) Quote(ctx context.Context, req domain.CreateOrderRequest) (pricing.Quote, error) {
	if err := validateOrderRequest(&req); err != nil {
		return pricing.Quote{}, err
	}
	return s.settle(ctx, s.store, req, false)
}

// settle prices req against st. With lock the member row stays locked for the
// rest of the surrounding Atomic unit, so the balance it reads is the one debited.
func (s *OrderService) settle(ctx context.Context, st repository.Store, req domain.CreateOrderRequest, lock bool) (pricing.Quote, error) {
	var member *domain.Member
	if req.MemberPhone != "" {
		getMember := st.GetMember
		if lock {
			getMember = st.GetMemberForUpdate
		}
		m, err := getMember(ctx, req.MemberPhone)
		if err != nil {
			return pricing.Quote{}, err
		}
		member = &m
	}
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.MenuItemID)
	}
	catalog, err := st.GetMenuItems(ctx, ids)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("failed to load catalog: %w", err)
	}
	return pricing.Settle(catalog, req.Items, member, req.UsePoints, s.rules)
}

// Place prices the order from the catalog, moves the member balance and
// stores the order in one unit, then announces it.
func (s *OrderService) Place(ctx context.Context, req domain.CreateOrderRequest, actor string) (domain.Order, error) {
	// 1. Basic validation
	if err := validateOrderRequest(&req); err != nil {
		return domain.Order{}, err
	}

	// 2. Reject unknown items, members and bad quantities before a ticket is drawn
	if _, err := s.settle(ctx, s.store, req, false); err != nil {
		return domain.Order{}, err
	}

	// 3. Ticket for takeout (a failed placement leaves a gap, never a duplicate)
	var ticketNo *int
	if req.OrderType == domain.OrderTypeTakeout {
		n, err := s.tickets.Next(ctx)
		if err != nil {
			return domain.Order{}, fmt.Errorf("failed to assign ticket: %w", err)
		}
		ticketNo = &n
	}

	// 4. Settle again under the member lock and persist atomically
	var order domain.Order
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		q, err := s.settle(ctx, tx, req, true)
		if err != nil {
			return err
		}
		if q.MemberPointsAfter != nil {
			if delta := q.EarnedPoints - q.UsedPoints; delta != 0 {
				if _, err := tx.AddMemberPoints(ctx, req.MemberPhone, delta); err != nil {
					return err
				}
			}
		}

		now := s.now()
		order = domain.Order{
			ID:           uuid.NewString(),
			TicketNumber: ticketNo,
			Type:         req.OrderType,
			TableNumber:  req.TableNumber,
			CustomerName: req.CustomerName,
			Note:         req.Note,
			Items:        q.Lines,
			Subtotal:     q.Subtotal,
			UsedPoints:   q.UsedPoints,
			Discount:     q.Discount,
			Total:        q.Total,
			EarnedPoints: q.EarnedPoints,
			Status:       domain.StatusPendingPayment,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.MemberPhone != "" {
			phone := req.MemberPhone
			order.MemberPhone = &phone
		}
		return tx.CreateOrder(ctx, order, actor)
	})
	if err != nil {
		return domain.Order{}, err
	}

	metrics.OrdersPlaced.WithLabelValues(string(order.Type)).Inc()
	metrics.PointsRedeemed.Add(float64(order.UsedPoints))
	metrics.PointsEarned.Add(float64(order.EarnedPoints))

	fields := map[string]any{
		"order_id":      order.ID,
		"order_type":    order.Type,
		"total":         order.Total.StringFixed(2),
		"used_points":   order.UsedPoints,
		"earned_points": order.EarnedPoints,
	}
	if order.TicketNumber != nil {
		fields["ticket_number"] = *order.TicketNumber
	}
	s.lg.Ctx(ctx).Info("order_placed", fields)

	// 5. Announce; the order is already stored, so a broker failure is only logged
	if err := s.pub.StatusChanged(ctx, events.Created(order, actor)); err != nil {
		s.lg.Ctx(ctx).Error("order_publish_failed", err, map[string]any{"order_id": order.ID})
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *OrderService) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListOrders(ctx, f)
}

func (s *OrderService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	return s.store.StatusHistory(ctx, id)
}

// UpdateStatus accepts any known status regardless of the current one.
// Entering PAID hands the order to the kitchen.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, actor string) (domain.Order, error) {
	status = domain.OrderStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return domain.Order{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if actor == "" {
		actor = "api"
	}

	old, order, err := s.store.UpdateOrderStatus(ctx, id, status, actor)
	if err != nil {
		return domain.Order{}, err
	}
	metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	s.lg.Ctx(ctx).Info("order_status_changed", map[string]any{
		"order_id": id, "old_status": old, "new_status": status, "changed_by": actor,
	})

	var errs []error
	if err := s.pub.StatusChanged(ctx, events.Changed(order, old, actor)); err != nil {
		errs = append(errs, err)
	}
	if status == domain.StatusPaid && old != domain.StatusPaid {
		if err := s.pub.SendToKitchen(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.lg.Ctx(ctx).Error("order_publish_failed", err, map[string]any{"order_id": id})
	}
	return order, nil
}

func validateOrderRequest(req *domain.CreateOrderRequest) error {
	req.OrderType = domain.OrderType(strings.ToLower(strings.TrimSpace(string(req.OrderType))))
	if !req.OrderType.Valid() {
		return domain.NewValidationError("order_type", "order_type must be dine_in or takeout")
	}
	switch req.OrderType {
	case domain.OrderTypeDineIn:
		if req.TableNumber == nil || *req.TableNumber <= 0 {
			return domain.NewValidationError("table_number", "dine_in orders need a positive table_number")
		}
	case domain.OrderTypeTakeout:
		req.TableNumber = nil
	}
	if req.MemberPhone != "" {
		phone, err := NormalizePhone(req.MemberPhone)
		if err != nil {
			return err
		}
		req.MemberPhone = phone
	}
	if req.UsePoints < 0 {
		req.UsePoints = 0
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if len([]rune(req.CustomerName)) > maxNameLen {
		return domain.NewValidationError("customer_name", fmt.Sprintf("customer_name must be at most %d characters", maxNameLen))
	}
	if len([]rune(req.Note)) > maxNoteLen {
		return domain.NewValidationError("note", fmt.Sprintf("note must be at most %d characters", maxNoteLen))
	}
	return nil
}
