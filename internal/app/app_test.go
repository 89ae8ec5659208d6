package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/ticket"
)

func TestRules(t *testing.T) {
	cfg := config.Default()
	rules, err := Rules(&cfg)
	require.NoError(t, err)
	assert.True(t, rules.PointValue.Equal(decimal.NewFromInt(1)))
	assert.True(t, rules.PointsPerAmount.Equal(decimal.NewFromInt(10)))

	cfg.Loyalty.PointValue = "abc"
	_, err = Rules(&cfg)
	assert.Error(t, err)

	cfg.Loyalty.PointValue = "0"
	_, err = Rules(&cfg)
	assert.Error(t, err)
}

func TestOpenStoreAndTickets_Memory(t *testing.T) {
	lg := logger.NewWithZap("test", zap.NewNop())
	cfg := config.Default()
	res := &Resources{}
	defer res.Close()

	require.NoError(t, OpenStore(context.Background(), &cfg, lg, res))
	require.NotNil(t, res.Store)
	assert.Nil(t, res.DB)

	seq, err := Tickets(context.Background(), &cfg, lg, res)
	require.NoError(t, err)
	assert.IsType(t, &ticket.MemorySequencer{}, seq)
	require.NotNil(t, res.Cron)

	n, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenStore_JSON(t *testing.T) {
	lg := logger.NewWithZap("test", zap.NewNop())
	cfg := config.Default()
	cfg.Storage.Driver = "json"
	cfg.Storage.JSONPath = filepath.Join(t.TempDir(), "store.json")
	res := &Resources{}
	defer res.Close()

	require.NoError(t, OpenStore(context.Background(), &cfg, lg, res))
	require.NoError(t, res.Store.Ping(context.Background()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "mongo"
	err := OpenStore(context.Background(), &cfg, logger.NewWithZap("test", zap.NewNop()), &Resources{})
	assert.Error(t, err)
}
