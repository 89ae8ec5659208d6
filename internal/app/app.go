// Package app wires configuration into the runnable modes: the HTTP API,
// the kitchen worker and the notification subscriber.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/connections/database"
	"restaurant-ordering/internal/connections/rabbitmq"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

// Resources are the long-lived connections a mode owns. Close releases them.
type Resources struct {
	Store  repository.Store
	DB     *sqlx.DB // nil unless storage.driver is postgres
	Redis  *redis.Client
	Rabbit *rabbitmq.Client
	Cron   *cron.Cron
}

func (r *Resources) Close() {
	if r.Cron != nil {
		<-r.Cron.Stop().Done()
	}
	r.Rabbit.Close()
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.Store != nil {
		_ = r.Store.Close()
	}
}

// OpenStore opens the configured storage driver. Postgres is migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config, lg *logger.Logger, res *Resources) error {
	switch cfg.Storage.Driver {
	case "memory":
		res.Store = repository.NewMemoryStore()
	case "json":
		st, err := repository.NewJSONStore(cfg.Storage.JSONPath)
		if err != nil {
			return err
		}
		res.Store = st
	case "postgres":
		db, err := database.ConnectDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		version, err := database.Migrate(db)
		if err != nil {
			_ = db.Close()
			return err
		}
		lg.Info("db_migrated", map[string]any{"version": version})
		res.DB = db
		res.Store = repository.NewPostgresStore(db)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	lg.Info("store_opened", map[string]any{"driver": cfg.Storage.Driver})
	return nil
}

// Rules parses the loyalty settings.
func Rules(cfg *config.Config) (pricing.Rules, error) {
	pv, err := decimal.NewFromString(cfg.Loyalty.PointValue)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("loyalty.point_value: %w", err)
	}
	ppa, err := decimal.NewFromString(cfg.Loyalty.PointsPerAmount)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("loyalty.points_per_amount: %w", err)
	}
	rules := pricing.Rules{PointValue: pv, PointsPerAmount: ppa}
	if err := rules.Validate(); err != nil {
		return pricing.Rules{}, err
	}
	return rules, nil
}

// Tickets picks the shared sequencer when one is available: Redis first,
// then the Postgres counter table, else an in-process counter reset at midnight.
func Tickets(ctx context.Context, cfg *config.Config, lg *logger.Logger, res *Resources) (ticket.Sequencer, error) {
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		res.Redis = client
		lg.Info("tickets_redis", map[string]any{"addr": cfg.Redis.Addr})
		return ticket.NewRedisSequencer(client, time.Local), nil
	}
	if res.DB != nil {
		lg.Info("tickets_postgres", nil)
		return ticket.NewPostgresSequencer(res.DB, time.Local), nil
	}
	seq := ticket.NewMemorySequencer(time.Local)
	c, err := seq.StartDailyReset()
	if err != nil {
		return nil, err
	}
	res.Cron = c
	lg.Info("tickets_memory", nil)
	return seq, nil
}

// DialRabbit connects and declares the exchange/queue topology.
func DialRabbit(ctx context.Context, cfg *config.Config, lg *logger.Logger, res *Resources) error {
	client, err := rabbitmq.DialRetry(ctx, rabbitmq.FromConfig(cfg.RabbitMQ), 10, 2*time.Second)
	if err != nil {
		return err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return err
	}
	res.Rabbit = client
	lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "port": cfg.RabbitMQ.Port})
	return nil
}
