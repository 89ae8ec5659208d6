package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerStampsServiceActionAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := NewWithZap("order-service", zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	lg.Ctx(ctx).Info("order_placed", map[string]any{"order_id": "o-1"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "order_placed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "order-service", fields["service"])
	assert.Equal(t, "order_placed", fields["action"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "o-1", fields["order_id"])
}

func TestLoggerErrorCarriesMessage(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := NewWithZap("kitchen", zap.New(core))

	lg.Error("publish_failed", errors.New("broker down"), nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	errField, ok := entry.ContextMap()["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "broker down", errField["msg"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lg := NewWithZap("api", zap.New(core))

	lg.Debug("noise", nil)
	lg.Info("signal", nil)

	assert.Equal(t, 1, logs.Len())
}

func TestRequestIDRoundTrip(t *testing.T) {
	id := NewRequestID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestIDFromContext(WithRequestID(context.Background(), id)))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
