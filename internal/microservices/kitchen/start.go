package kitchen

import (
	"context"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/microservices/kitchen/service"
	"restaurant-ordering/internal/repository"
)

// Run blocks until ctx ends or the worker fails.
func Run(ctx context.Context, orders service.Orders, workers repository.WorkerRepository, consumer service.Consumer, cfg service.Config, lg *logger.Logger) error {
	svc := service.New(orders, workers, consumer, cfg, lg)
	if err := svc.KitchenService.Run(ctx); err != nil {
		lg.Error("kitchen_stopped", err, map[string]any{"worker": cfg.WorkerName})
		return err
	}
	return nil
}
