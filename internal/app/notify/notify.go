// Package notify runs the notification-subscriber mode.
package notify

import (
	"context"
	"errors"

	"restaurant-ordering/internal/app"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/microservices/notificator"
)

func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	if !cfg.RabbitMQEnabled() {
		return errors.New("notification-subscriber needs a rabbitmq host")
	}
	res := &app.Resources{}
	defer res.Close()
	if err := app.DialRabbit(ctx, cfg, lg, res); err != nil {
		return err
	}
	return notificator.Start(ctx, res.Rabbit, lg)
}
