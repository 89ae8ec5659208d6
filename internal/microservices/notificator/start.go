package notificator

import (
	"context"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/microservices/notificator/service"
)

func Start(ctx context.Context, consumer service.Consumer, lg *logger.Logger) error {
	svc := service.New(consumer, lg)
	return svc.NotificatorService.Notify(ctx)
}
