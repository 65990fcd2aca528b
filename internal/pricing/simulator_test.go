package pricing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/models"
)

func newTestSimulator(seed int64) *Simulator {
	return NewSimulator(DefaultParams(), rand.New(rand.NewSource(seed)))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNextStaysInsideBandAndRounds(t *testing.T) {
	sim := newTestSimulator(42)
	ref := d("4000")
	floor, ceiling := sim.Bounds(ref)
	q := Quote{Price: ref, Reference: ref, Category: models.AssetCategoryStock}

	for i := 0; i < 20000; i++ {
		tick := sim.Next(q)
		require.False(t, tick.Price.LessThan(floor), "price %s below floor %s", tick.Price, floor)
		require.False(t, tick.Price.GreaterThan(ceiling), "price %s above ceiling %s", tick.Price, ceiling)
		require.True(t, tick.Price.Equal(tick.Price.Round(2)), "price %s not rounded to cents", tick.Price)
		require.Positive(t, tick.Volume)
		q.Price = tick.Price
	}
}

func TestNextMoveWithinVolatility(t *testing.T) {
	tests := []struct {
		name     string
		category models.AssetCategory
		limit    float64
	}{
		{"stock", models.AssetCategoryStock, 0.04},
		{"fund", models.AssetCategoryFund, 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(7)
			price := d("1000")
			for i := 0; i < 5000; i++ {
				tick := sim.Next(Quote{Price: price, Reference: price, Category: tt.category})
				diff := tick.Price.Sub(price).Abs().InexactFloat64()
				assert.LessOrEqual(t, diff, 1000*tt.limit+0.005)
			}
		})
	}
}

func TestNextClampsToFloor(t *testing.T) {
	sim := newTestSimulator(1)
	ref := d("100")
	// Sitting exactly on the floor, any downward move must be clamped back.
	q := Quote{Price: d("30"), Reference: ref, Category: models.AssetCategoryStock}
	for i := 0; i < 1000; i++ {
		tick := sim.Next(q)
		assert.True(t, tick.Price.GreaterThanOrEqual(d("30")), "price %s below floor", tick.Price)
	}
}

func TestNextClampsToCeiling(t *testing.T) {
	sim := newTestSimulator(2)
	q := Quote{Price: d("300"), Reference: d("100"), Category: models.AssetCategoryStock}
	for i := 0; i < 1000; i++ {
		tick := sim.Next(q)
		assert.True(t, tick.Price.LessThanOrEqual(d("300")), "price %s above ceiling", tick.Price)
	}
}

func TestBoundsRoundInward(t *testing.T) {
	sim := newTestSimulator(1)

	floor, ceiling := sim.Bounds(d("10.01"))
	// 10.01 * 0.3 = 3.003 -> 3.01, 10.01 * 3 = 30.03
	assert.Equal(t, "3.01", floor.StringFixed(2))
	assert.Equal(t, "30.03", ceiling.StringFixed(2))

	floor, ceiling = sim.Bounds(d("0.01"))
	assert.Equal(t, "0.01", floor.StringFixed(2))
	assert.True(t, ceiling.GreaterThanOrEqual(floor))
}

func TestNextUsesPriceWhenReferenceMissing(t *testing.T) {
	sim := newTestSimulator(3)
	tick := sim.Next(Quote{Price: d("500"), Category: models.AssetCategoryFund})
	assert.True(t, tick.Price.GreaterThanOrEqual(d("490")))
	assert.True(t, tick.Price.LessThanOrEqual(d("510")))
}

func TestNextDeterministicForSeed(t *testing.T) {
	a := newTestSimulator(99).Series(Quote{Price: d("1800"), Reference: d("1800")}, 50)
	b := newTestSimulator(99).Series(Quote{Price: d("1800"), Reference: d("1800")}, 50)
	require.Len(t, a, 50)
	for i := range a {
		assert.True(t, a[i].Price.Equal(b[i].Price))
		assert.Equal(t, a[i].Volume, b[i].Volume)
	}
}

func TestVolumeGrowsWithMove(t *testing.T) {
	sim := newTestSimulator(11)
	var bigSum, smallSum float64
	var bigN, smallN int
	price := d("1000")
	for i := 0; i < 40000; i++ {
		tick := sim.Next(Quote{Price: price, Reference: price, Category: models.AssetCategoryStock})
		switch m := math.Abs(tick.ChangePercent); {
		case m > 3:
			bigSum += float64(tick.Volume)
			bigN++
		case m < 1:
			smallSum += float64(tick.Volume)
			smallN++
		}
	}
	require.NotZero(t, bigN)
	require.NotZero(t, smallN)
	assert.Greater(t, bigSum/float64(bigN), smallSum/float64(smallN))
}

func TestFundVolumeUsesFundBase(t *testing.T) {
	sim := newTestSimulator(5)
	for i := 0; i < 1000; i++ {
		tick := sim.Next(Quote{Price: d("500"), Reference: d("500"), Category: models.AssetCategoryFund})
		// base 75000: at most 1.2*base + 0.02*5*base + base/4
		assert.LessOrEqual(t, tick.Volume, int64(75000*1.2+75000*0.1+75000/4+10))
		assert.GreaterOrEqual(t, tick.Volume, int64(75000*0.8-1))
	}
}
