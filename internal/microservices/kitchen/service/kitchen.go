package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/common/metrics"
	"restaurant-ordering/internal/connections/rabbitmq"
	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/repository"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

// Orders is the slice of the order service the kitchen drives.
type Orders interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, actor string) (domain.Order, error)
}

type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error)
}

type KitchenServiceInterface interface {
	Run(ctx context.Context) error
	Handle(ctx context.Context, body []byte) error
}

type Config struct {
	WorkerName string
	OrderTypes []domain.OrderType // empty: every type
	Prefetch   int
	Heartbeat  time.Duration
	CookTime   time.Duration
}

type KitchenService struct {
	orders    Orders
	workers   repository.WorkerRepository
	consumer  Consumer
	cfg       Config
	lg        *logger.Logger
	processed atomic.Int64
}

func NewKitchenService(orders Orders, workers repository.WorkerRepository, consumer Consumer, cfg Config, lg *logger.Logger) *KitchenService {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.CookTime < 0 {
		cfg.CookTime = 0
	}
	return &KitchenService{orders: orders, workers: workers, consumer: consumer, cfg: cfg, lg: lg}
}

// ParseOrderTypes turns "dine_in,takeout" into order types, rejecting unknown ones.
func ParseOrderTypes(csv string) ([]domain.OrderType, error) {
	var out []domain.OrderType
	for _, raw := range strings.Split(csv, ",") {
		t := domain.OrderType(strings.ToLower(strings.TrimSpace(raw)))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("unknown order type %q", raw)
		}
		out = append(out, t)
	}
	return out, nil
}

func (ks *KitchenService) Processed() int64 { return ks.processed.Load() }

// Run registers the worker and consumes the kitchen queue until ctx ends.
func (ks *KitchenService) Run(ctx context.Context) error {
	if strings.TrimSpace(ks.cfg.WorkerName) == "" {
		return errors.New("worker name is empty: pass --worker-name")
	}
	if err := ks.workers.RegisterWorker(ctx, ks.cfg.WorkerName); err != nil {
		ks.lg.Error("worker_registration_failed", err, map[string]any{"worker": ks.cfg.WorkerName})
		return err
	}
	ks.lg.Info("worker_registered", map[string]any{"worker": ks.cfg.WorkerName, "order_types": ks.cfg.OrderTypes})

	defer func() {
		if err := ks.workers.SetWorkerOffline(context.Background(), ks.cfg.WorkerName); err != nil {
			ks.lg.Error("worker_offline_failed", err, map[string]any{"worker": ks.cfg.WorkerName})
		}
		ks.lg.Info("graceful_shutdown", map[string]any{"worker": ks.cfg.WorkerName, "processed": ks.Processed()})
	}()

	msgs, err := ks.consumer.Consume(rabbitmq.KitchenQueue, ks.cfg.WorkerName, ks.cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.KitchenQueue, err)
	}

	var wg sync.WaitGroup
	beatCtx, stopBeat := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ks.heartbeat(beatCtx)
	}()
	defer func() {
		stopBeat()
		wg.Wait()
	}()

	ks.lg.Info("consuming", map[string]any{"queue": rabbitmq.KitchenQueue, "prefetch": ks.cfg.Prefetch})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("kitchen deliveries channel closed")
			}
			ks.settle(d, ks.Handle(ctx, d.Body))
		}
	}
}

func (ks *KitchenService) heartbeat(ctx context.Context) {
	t := time.NewTicker(ks.cfg.Heartbeat)
	defer t.Stop()
	var reported int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// the store accumulates, so only report what is new since the last beat
			n := ks.Processed()
			if err := ks.workers.WorkerHeartbeat(ctx, ks.cfg.WorkerName, int(n-reported)); err != nil {
				ks.lg.Warn("heartbeat_failed", map[string]any{"worker": ks.cfg.WorkerName, "error": err.Error()})
				continue
			}
			reported = n
			ks.lg.Debug("heartbeat_sent", map[string]any{"worker": ks.cfg.WorkerName})
		}
	}
}

func (ks *KitchenService) settle(d amqp.Delivery, err error) {
	var ackErr error
	switch {
	case err == nil:
		metrics.KitchenOrders.WithLabelValues("ack").Inc()
		ackErr = d.Ack(false)
	case errors.Is(err, ErrDLQ):
		metrics.KitchenOrders.WithLabelValues("dead_letter").Inc()
		ks.lg.Warn("message_dead_lettered", map[string]any{"message_id": d.MessageId, "error": err.Error()})
		ackErr = d.Nack(false, false)
	default:
		metrics.KitchenOrders.WithLabelValues("requeue").Inc()
		ks.lg.Warn("message_requeued", map[string]any{"message_id": d.MessageId, "error": err.Error()})
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		ks.lg.Error("ack_failed", ackErr, map[string]any{"message_id": d.MessageId})
	}
}

func (ks *KitchenService) allowedType(t domain.OrderType) bool {
	if len(ks.cfg.OrderTypes) == 0 {
		return true
	}
	for _, v := range ks.cfg.OrderTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Handle cooks one order message: PAID -> COOKING -> READY. A redelivered
// order that is already COOKING resumes; anything else is acknowledged
// without work.
func (ks *KitchenService) Handle(ctx context.Context, body []byte) error {
	var msg domain.OrderMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrDLQ, err)
	}
	if msg.OrderID == "" || !msg.OrderType.Valid() {
		return fmt.Errorf("%w: missing order id or type", ErrDLQ)
	}
	if !ks.allowedType(msg.OrderType) {
		return fmt.Errorf("%w: order type %s not handled here", ErrRequeue, msg.OrderType)
	}

	o, err := ks.orders.Get(ctx, msg.OrderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: order %s not found", ErrDLQ, msg.OrderID)
	case err != nil:
		return fmt.Errorf("%w: load order: %v", ErrRequeue, err)
	}

	fields := map[string]any{"order_id": o.ID, "worker": ks.cfg.WorkerName}
	switch o.Status {
	case domain.StatusPaid:
		if _, err := ks.orders.UpdateStatus(ctx, o.ID, domain.StatusCooking, ks.cfg.WorkerName); err != nil {
			return fmt.Errorf("%w: start cooking: %v", ErrRequeue, err)
		}
	case domain.StatusCooking:
		ks.lg.Info("order_cooking_resumed", fields)
	default:
		ks.lg.Info("order_skipped", map[string]any{"order_id": o.ID, "status": o.Status})
		return nil
	}
	ks.lg.Debug("order_processing_started", fields)

	select {
	case <-time.After(ks.cfg.CookTime):
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrRequeue, ctx.Err())
	}

	if _, err := ks.orders.UpdateStatus(ctx, o.ID, domain.StatusReady, ks.cfg.WorkerName); err != nil {
		return fmt.Errorf("%w: mark ready: %v", ErrRequeue, err)
	}
	ks.processed.Add(1)
	ks.lg.Info("order_completed", fields)
	return nil
}
