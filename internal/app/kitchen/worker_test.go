package kitchen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
)

func TestRun_NeedsSharedBackends(t *testing.T) {
	cfg := config.Default()
	err := Run(context.Background(), &cfg, Options{WorkerName: "chef-1"}, logger.NewWithZap("test", zap.NewNop()))
	assert.ErrorIs(t, err, ErrSharedStoreRequired)
}
