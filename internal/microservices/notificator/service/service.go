package service

import "restaurant-ordering/internal/common/logger"

type Service struct {
	NotificatorService *NotificatorService
}

func New(consumer Consumer, lg *logger.Logger) *Service {
	return &Service{NotificatorService: NewNotificatorService(consumer, lg)}
}
