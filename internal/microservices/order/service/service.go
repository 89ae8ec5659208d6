package service

import (
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/events"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

type Service struct {
	MenuService   MenuServiceInterface
	MemberService MemberServiceInterface
	OrderService  OrderServiceInterface
}

type Deps struct {
	Store     repository.Store
	Tickets   ticket.Sequencer
	Publisher events.Publisher
	Rules     pricing.Rules
	UploadDir string
	Logger    *logger.Logger
}

func New(d Deps) *Service {
	return &Service{
		MenuService:   NewMenuService(d.Store, d.UploadDir, d.Logger),
		MemberService: NewMemberService(d.Store, d.Logger),
		OrderService:  NewOrderService(d.Store, d.Tickets, d.Publisher, d.Rules, d.Logger),
	}
}
