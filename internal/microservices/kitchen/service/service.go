package service

import (
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/repository"
)

type Service struct {
	KitchenService KitchenServiceInterface
}

func New(orders Orders, workers repository.WorkerRepository, consumer Consumer, cfg Config, lg *logger.Logger) *Service {
	return &Service{
		KitchenService: NewKitchenService(orders, workers, consumer, cfg, lg),
	}
}
