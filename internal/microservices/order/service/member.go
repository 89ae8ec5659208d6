package service

import (
	"context"
	"strings"
	"time"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/repository"
)

type MemberServiceInterface interface {
	Get(ctx context.Context, phone string) (domain.Member, error)
	List(ctx context.Context) ([]domain.Member, error)
	Register(ctx context.Context, req domain.RegisterMemberRequest) (domain.Member, error)
	AdjustPoints(ctx context.Context, phone string, req domain.AdjustPointsRequest, actor string) (domain.Member, error)
}

type MemberService struct {
	store repository.MemberRepository
	lg    *logger.Logger
	now   func() time.Time
}

func NewMemberService(store repository.MemberRepository, lg *logger.Logger) *MemberService {
	return &MemberService{store: store, lg: lg, now: func() time.Time { return time.Now().UTC() }}
}

// NormalizePhone keeps ASCII digits only and requires 8 to 15 of them.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case '0' <= r && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return "", domain.NewValidationError("phone", "phone may contain digits 0-9, spaces and + - ( ) . only")
		}
	}
	phone := b.String()
	if len(phone) < 8 || len(phone) > 15 {
		return "", domain.NewValidationError("phone", "phone must have 8 to 15 digits")
	}
	return phone, nil
}

func (s *MemberService) Get(ctx context.Context, phone string) (domain.Member, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return domain.Member{}, err
	}
	return s.store.GetMember(ctx, p)
}

func (s *MemberService) List(ctx context.Context) ([]domain.Member, error) {
	return s.store.ListMembers(ctx)
}

func (s *MemberService) Register(ctx context.Context, req domain.RegisterMemberRequest) (domain.Member, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return domain.Member{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Member{}, domain.NewValidationError("name", "name is required")
	}
	now := s.now()
	m := domain.Member{Phone: phone, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return domain.Member{}, err
	}
	s.lg.Ctx(ctx).Info("member_registered", map[string]any{"phone": phone})
	return m, nil
}

// AdjustPoints is a staff correction. The balance never drops below zero.
func (s *MemberService) AdjustPoints(ctx context.Context, phone string, req domain.AdjustPointsRequest, actor string) (domain.Member, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return domain.Member{}, err
	}
	if req.Delta == 0 {
		return domain.Member{}, domain.NewValidationError("delta", "delta must not be 0")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Member{}, domain.NewValidationError("reason", "reason is required")
	}
	m, err := s.store.AddMemberPoints(ctx, p, req.Delta)
	if err != nil {
		return domain.Member{}, err
	}
	s.lg.Ctx(ctx).Info("member_points_adjusted", map[string]any{
		"phone": p, "delta": req.Delta, "reason": req.Reason, "actor": actor, "balance": m.Points,
	})
	return m, nil
}
