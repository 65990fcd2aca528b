package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func holding(assetID string, qty int64, avg string) models.Holding {
	return models.Holding{ID: "h-" + assetID, UserID: "u1", AssetID: assetID, Quantity: decimal.NewFromInt(qty), AvgPrice: d(avg)}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %s, got %s", want, got)
}

func TestRevalue(t *testing.T) {
	prices := PriceBook{"tcs": d("4500"), "infy": d("1700.55")}
	holdings := []models.Holding{
		holding("tcs", 6, "4000"),
		holding("infy", 3, "1800"),
	}

	res := Revalue(holdings, prices)

	// invested 24000 + 5400, current 27000 + 5101.65
	assertDecimal(t, "29400", res.TotalInvested)
	assertDecimal(t, "32101.65", res.CurrentValue)
	assertDecimal(t, "2701.65", res.ProfitLoss)
	assertDecimal(t, "9.19", res.ProfitLossPercent)
	assert.Len(t, res.Kept, 2)
	assert.Empty(t, res.Dropped)
}

func TestRevalueEmptyHasZeroPercent(t *testing.T) {
	res := Revalue(nil, PriceBook{})
	assert.True(t, res.TotalInvested.IsZero())
	assert.True(t, res.CurrentValue.IsZero())
	assert.True(t, res.ProfitLossPercent.IsZero())
}

func TestRevalueDropsOrphans(t *testing.T) {
	prices := PriceBook{"tcs": d("4000")}
	holdings := []models.Holding{
		holding("tcs", 2, "4000"),
		holding("gone", 5, "100"),
	}

	res := Revalue(holdings, prices)

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "gone", res.Dropped[0].AssetID)
	require.Len(t, res.Kept, 1)
	assertDecimal(t, "8000", res.TotalInvested)
	assertDecimal(t, "8000", res.CurrentValue)
	assertDecimal(t, "0", res.ProfitLossPercent)
}

func TestRevalueIsIdempotent(t *testing.T) {
	prices := PriceBook{"a": d("10.333"), "b": d("7.01")}
	holdings := []models.Holding{
		holding("a", 3, "9.99"),
		holding("b", 7, "7.5"),
		holding("missing", 1, "1"),
	}

	first := Revalue(holdings, prices)
	second := Revalue(first.Kept, prices)

	assert.True(t, first.Aggregates.Equal(second.Aggregates))
	assert.Empty(t, second.Dropped)
	assert.Equal(t, first.Kept, second.Kept)
}

func TestRevalueRoundsToCents(t *testing.T) {
	res := Revalue([]models.Holding{holding("a", 3, "0.333")}, PriceBook{"a": d("0.335")})
	assertDecimal(t, "1", res.TotalInvested)
	assertDecimal(t, "1.01", res.CurrentValue)
	assertDecimal(t, "0.01", res.ProfitLoss)
	assertDecimal(t, "1", res.ProfitLossPercent)
}

func TestResolve(t *testing.T) {
	positions := Resolve([]models.Holding{holding("a", 1, "1"), holding("b", 1, "1")}, PriceBook{"a": d("2")})
	require.Len(t, positions, 2)

	live, ok := positions[0].(Live)
	require.True(t, ok)
	assertDecimal(t, "2", live.Price)

	_, ok = positions[1].(Orphaned)
	assert.True(t, ok)
}

func TestAggregatesApplyTo(t *testing.T) {
	agg := Aggregates{TotalInvested: d("100"), CurrentValue: d("110"), ProfitLoss: d("10"), ProfitLossPercent: d("10")}
	u := &models.User{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	agg.ApplyTo(u, at)

	assert.True(t, FromUser(u).Equal(agg))
	require.NotNil(t, u.ValuedAt)
	assert.True(t, u.ValuedAt.Equal(at))
}
