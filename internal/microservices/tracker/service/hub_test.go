package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/domain"
)

func TestHub_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub(nil, logger.NewWithZap("test", zap.NewNop()))

	// Nothing drains these outboxes, as with a peer that stopped reading.
	stalled := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	healthy := &client{send: make(chan []byte, 64), done: make(chan struct{})}
	hub.add(allOrders, stalled)
	hub.add(allOrders, healthy)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, hub.StatusChanged(context.Background(), domain.StatusUpdateMessage{
			Event: domain.EventOrderStatusChanged, OrderID: "o1", NewStatus: domain.StatusCooking,
		}))
	}
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Len(t, healthy.send, 10)
	select {
	case <-stalled.done:
	default:
		t.Fatal("stalled client should be dropped")
	}
	assert.False(t, stalled.enqueue([]byte("late")))
}
