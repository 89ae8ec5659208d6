// Package kitchen runs the kitchen-worker mode.
package kitchen

import (
	"context"
	"errors"
	"time"

	"restaurant-ordering/internal/app"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/events"
	kitchensvc "restaurant-ordering/internal/microservices/kitchen"
	"restaurant-ordering/internal/microservices/kitchen/service"
	orderservice "restaurant-ordering/internal/microservices/order/service"
	"restaurant-ordering/internal/ticket"
)

type Options struct {
	WorkerName string
	OrderTypes string
	Heartbeat  time.Duration // overrides kitchen.heartbeat_interval when > 0
	Prefetch   int           // overrides kitchen.prefetch when > 0
}

var ErrSharedStoreRequired = errors.New("kitchen-worker needs storage.driver=postgres and a rabbitmq host")

func Run(ctx context.Context, cfg *config.Config, opts Options, lg *logger.Logger) error {
	if cfg.Storage.Driver != "postgres" || !cfg.RabbitMQEnabled() {
		return ErrSharedStoreRequired
	}
	types, err := service.ParseOrderTypes(opts.OrderTypes)
	if err != nil {
		return err
	}

	res := &app.Resources{}
	defer res.Close()
	if err := app.OpenStore(ctx, cfg, lg, res); err != nil {
		return err
	}
	if err := app.DialRabbit(ctx, cfg, lg, res); err != nil {
		return err
	}
	rules, err := app.Rules(cfg)
	if err != nil {
		return err
	}

	// Status changes go through the order service so history, metrics and
	// notifications match the API. The worker never places orders, so the
	// ticket sequencer is never consulted.
	orders := orderservice.NewOrderService(res.Store, ticket.NewPostgresSequencer(res.DB, time.Local),
		events.NewRabbitPublisher(res.Rabbit, "kitchen"), rules, lg)

	wc := service.Config{
		WorkerName: opts.WorkerName,
		OrderTypes: types,
		Prefetch:   cfg.Kitchen.Prefetch,
		Heartbeat:  cfg.Kitchen.HeartbeatInterval,
		CookTime:   cfg.Kitchen.CookTime,
	}
	if opts.Prefetch > 0 {
		wc.Prefetch = opts.Prefetch
	}
	if opts.Heartbeat > 0 {
		wc.Heartbeat = opts.Heartbeat
	}
	return kitchensvc.Run(ctx, orders, res.Store, res.Rabbit, wc, lg)
}
