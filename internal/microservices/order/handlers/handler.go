package handlers

import (
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/microservices/order/service"
)

type Handler struct {
	MenuHandler   *MenuHandler
	MemberHandler *MemberHandler
	OrderHandler  *OrderHandler
}

func New(s *service.Service, lg *logger.Logger) *Handler {
	return &Handler{
		MenuHandler:   NewMenuHandler(s.MenuService, lg),
		MemberHandler: NewMemberHandler(s.MemberService, lg),
		OrderHandler:  NewOrderHandler(s.OrderService, lg),
	}
}
