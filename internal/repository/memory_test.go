package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ordering/internal/domain"
)

func seedMenu(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items := []domain.MenuItem{
		{ID: "m1", Name: "Latte", Price: decimal.RequireFromString("4.50"), Category: "drinks", Available: true, CreatedAt: now, UpdatedAt: now},
		{ID: "m2", Name: "Americano", Price: decimal.RequireFromString("3.00"), Category: "drinks", Available: false, CreatedAt: now, UpdatedAt: now},
		{ID: "m3", Name: "Bagel", Price: decimal.RequireFromString("2.75"), Category: "bakery", Available: true, CreatedAt: now, UpdatedAt: now},
	}
	for _, it := range items {
		require.NoError(t, s.CreateMenuItem(ctx, it))
	}
}

func TestMemoryStore_Menu(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedMenu(t, s)

	all, err := s.ListMenu(ctx, MenuFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"m3", "m2", "m1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	drinks, err := s.ListMenu(ctx, MenuFilter{Category: "drinks", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "m1", drinks[0].ID)

	err = s.CreateMenuItem(ctx, domain.MenuItem{ID: "m1", Name: "dup"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	found, err := s.GetMenuItems(ctx, []string{"m1", "nope", "m3"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, s.DeleteMenuItem(ctx, "m2"))
	_, err = s.GetMenuItem(ctx, "m2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.UpdateMenuItem(ctx, domain.MenuItem{ID: "m2"}), domain.ErrNotFound))
}

func TestMemoryStore_MemberPoints(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMember(ctx, domain.Member{Phone: "5551234", Name: "Ann", Points: 10}))

	m, err := s.AddMemberPoints(ctx, "5551234", -4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), m.Points)

	_, err = s.AddMemberPoints(ctx, "5551234", -7)
	assert.True(t, domain.IsValidation(err))

	got, err := s.GetMember(ctx, "5551234")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Points, "failed adjustment leaves balance untouched")

	_, err = s.AddMemberPoints(ctx, "000", 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemoryStore_OrdersAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2", "o3"} {
		o := domain.Order{ID: id, Type: domain.OrderTypeDineIn, Status: domain.StatusPendingPayment, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateOrder(ctx, o, "api"))
	}

	old, o, err := s.UpdateOrderStatus(ctx, "o2", domain.StatusPaid, "cashier")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, old)
	assert.Equal(t, domain.StatusPaid, o.Status)

	list, err := s.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, "o3", list[0].ID, "newest first")

	paid, err := s.ListOrders(ctx, OrderFilter{Status: domain.StatusPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)

	page, err := s.ListOrders(ctx, OrderFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "o2", page[0].ID)

	empty, err := s.ListOrders(ctx, OrderFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	hist, err := s.StatusHistory(ctx, "o2")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, domain.OrderStatus(""), hist[0].From)
	assert.Equal(t, domain.StatusPaid, hist[1].To)
	assert.Equal(t, "cashier", hist[1].ChangedBy)

	_, err = s.StatusHistory(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemoryStore_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMember(ctx, domain.Member{Phone: "5551234", Points: 20}))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx Store) error {
		if _, err := tx.AddMemberPoints(ctx, "5551234", -20); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, domain.Order{ID: "o1", Status: domain.StatusPendingPayment}, "api"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	m, err := s.GetMember(ctx, "5551234")
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.Points)
	_, err = s.GetOrder(ctx, "o1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemoryStore_Workers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.RegisterWorker(ctx, "chef-1"))
	assert.True(t, errors.Is(s.RegisterWorker(ctx, "chef-1"), domain.ErrConflict))

	require.NoError(t, s.WorkerHeartbeat(ctx, "chef-1", 2))
	require.NoError(t, s.SetWorkerOffline(ctx, "chef-1"))
	require.NoError(t, s.RegisterWorker(ctx, "chef-1"), "offline worker may come back")

	ws, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, 2, ws[0].OrdersProcessed)
	assert.Equal(t, "online", ws[0].Status)
}

func TestJSONStore_ReloadsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	s, err := NewJSONStore(path)
	require.NoError(t, err)
	seedMenu(t, s)
	require.NoError(t, s.CreateMember(ctx, domain.Member{Phone: "5551234", Name: "Ann", Points: 3}))

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)

	it, err := reopened.GetMenuItem(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, it.Price.Equal(decimal.RequireFromString("4.50")))

	m, err := reopened.GetMember(ctx, "5551234")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Points)
}
