package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
)

type fakeConsumer struct{ ch chan amqp.Delivery }

func (f fakeConsumer) Consume(string, string, int) (<-chan amqp.Delivery, error) { return f.ch, nil }

type ackRecorder struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.mu.Lock(); a.acks++; a.mu.Unlock(); return nil }
func (a *ackRecorder) Nack(uint64, bool, bool) error {
	a.mu.Lock()
	a.nacks++
	a.mu.Unlock()
	return nil
}
func (a *ackRecorder) Reject(uint64, bool) error { return a.Nack(0, false, false) }

func (a *ackRecorder) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks
}

func TestHandle_LogsStatusChange(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ns := NewNotificatorService(nil, logger.NewWithZap("notificator", zap.New(core)))

	ticket := 7
	body, err := json.Marshal(domain.StatusUpdateMessage{
		Event: domain.EventOrderStatusChanged, OrderID: "o1", TicketNumber: &ticket,
		OldStatus: domain.StatusCooking, NewStatus: domain.StatusReady, ChangedBy: "chef-1",
	})
	require.NoError(t, err)
	require.NoError(t, ns.Handle(body))

	entries := logs.FilterMessage("notification_received").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "o1", fields["order_id"])
	assert.EqualValues(t, 7, fields["ticket_number"])

	assert.Error(t, ns.Handle([]byte("nope")))
	assert.Error(t, ns.Handle([]byte(`{"order_id":"o1"}`)))
}

func TestNotify_AcksGoodAndRejectsBad(t *testing.T) {
	consumer := fakeConsumer{ch: make(chan amqp.Delivery, 2)}
	ns := NewNotificatorService(consumer, logger.NewWithZap("notificator", zap.NewNop()))
	ack := &ackRecorder{}

	good, err := json.Marshal(domain.StatusUpdateMessage{OrderID: "o1", NewStatus: domain.StatusPaid})
	require.NoError(t, err)
	consumer.ch <- amqp.Delivery{Acknowledger: ack, Body: good}
	consumer.ch <- amqp.Delivery{Acknowledger: ack, Body: []byte("{")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ns.Notify(ctx) }()

	require.Eventually(t, func() bool {
		a, n := ack.counts()
		return a == 1 && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
