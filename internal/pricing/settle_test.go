package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ordering/internal/domain"
)

func catalog() map[string]domain.MenuItem {
	return map[string]domain.MenuItem{
		"latte":    {ID: "latte", Name: "Latte", Price: decimal.NewFromInt(120), Available: true},
		"bagel":    {ID: "bagel", Name: "Bagel", Price: decimal.RequireFromString("45.50"), Available: true},
		"sold-out": {ID: "sold-out", Name: "Seasonal Pie", Price: decimal.NewFromInt(80), Available: false},
	}
}

func TestSettle_RecomputesFromCatalog(t *testing.T) {
	q, err := Settle(catalog(), []domain.OrderItemInput{
		{MenuItemID: "latte", Quantity: 2},
		{MenuItemID: "bagel", Quantity: 1},
	}, nil, 100, DefaultRules())
	require.NoError(t, err)

	assert.True(t, q.Subtotal.Equal(decimal.RequireFromString("285.5")), "subtotal %s", q.Subtotal)
	assert.True(t, q.Total.Equal(q.Subtotal))
	assert.Equal(t, int64(0), q.UsedPoints, "guests cannot redeem")
	assert.Equal(t, int64(0), q.EarnedPoints)
	assert.Nil(t, q.MemberPointsAfter)
	require.Len(t, q.Lines, 2)
	assert.True(t, q.Lines[0].LineTotal.Equal(decimal.NewFromInt(240)))
	assert.Equal(t, "Latte", q.Lines[0].Name)
}

func TestSettle_Redemption(t *testing.T) {
	tests := []struct {
		name      string
		balance   int64
		requested int64
		rules     Rules
		wantUsed  int64
		wantTotal string
		wantEarn  int64
	}{
		{
			name: "requested below balance and cap", balance: 500, requested: 40,
			rules: DefaultRules(), wantUsed: 40, wantTotal: "200", wantEarn: 20,
		},
		{
			name: "capped by balance", balance: 15, requested: 100,
			rules: DefaultRules(), wantUsed: 15, wantTotal: "225", wantEarn: 22,
		},
		{
			name: "capped by subtotal", balance: 1000, requested: 1000,
			rules: DefaultRules(), wantUsed: 240, wantTotal: "0", wantEarn: 0,
		},
		{
			name: "cap floors subtotal over point value", balance: 1000, requested: 1000,
			rules:    Rules{PointValue: decimal.NewFromInt(7), PointsPerAmount: decimal.NewFromInt(10)},
			wantUsed: 34, wantTotal: "2", wantEarn: 0,
		},
		{
			name: "negative request clamps to zero", balance: 50, requested: -5,
			rules: DefaultRules(), wantUsed: 0, wantTotal: "240", wantEarn: 24,
		},
		{
			name: "empty balance", balance: 0, requested: 10,
			rules: DefaultRules(), wantUsed: 0, wantTotal: "240", wantEarn: 24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member := &domain.Member{Phone: "0912345678", Points: tt.balance}
			q, err := Settle(catalog(), []domain.OrderItemInput{{MenuItemID: "latte", Quantity: 2}}, member, tt.requested, tt.rules)
			require.NoError(t, err)

			assert.Equal(t, tt.wantUsed, q.UsedPoints)
			assert.True(t, q.Total.Equal(decimal.RequireFromString(tt.wantTotal)), "total %s", q.Total)
			assert.Equal(t, tt.wantEarn, q.EarnedPoints)
			require.NotNil(t, q.MemberPointsAfter)
			assert.Equal(t, tt.balance-tt.wantUsed+tt.wantEarn, *q.MemberPointsAfter)
			assert.False(t, q.Total.IsNegative())
		})
	}
}

func TestSettle_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.OrderItemInput
	}{
		{name: "empty order", items: nil},
		{name: "unknown item", items: []domain.OrderItemInput{{MenuItemID: "ghost", Quantity: 1}}},
		{name: "unavailable item", items: []domain.OrderItemInput{{MenuItemID: "sold-out", Quantity: 1}}},
		{name: "zero quantity", items: []domain.OrderItemInput{{MenuItemID: "latte", Quantity: 0}}},
		{name: "quantity too large", items: []domain.OrderItemInput{{MenuItemID: "latte", Quantity: MaxQuantity + 1}}},
		{name: "missing id", items: []domain.OrderItemInput{{Quantity: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Settle(catalog(), tt.items, nil, 0, DefaultRules())
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
	assert.Error(t, Rules{PointValue: decimal.Zero, PointsPerAmount: decimal.NewFromInt(1)}.Validate())
	assert.Error(t, Rules{PointValue: decimal.NewFromInt(1), PointsPerAmount: decimal.NewFromInt(-1)}.Validate())
}
