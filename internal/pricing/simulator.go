// Package pricing generates simulated price movements for stocks and funds.
package pricing

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"papertrade/internal/models"
)

// Params controls the random walk. Volatilities are the maximum fractional
// move per tick; the ratios bound the price relative to its reference.
type Params struct {
	StockVolatility float64
	FundVolatility  float64
	FloorRatio      float64
	CeilingRatio    float64
	StockBaseVolume int64
	FundBaseVolume  int64
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{
		StockVolatility: 0.04,
		FundVolatility:  0.02,
		FloorRatio:      0.3,
		CeilingRatio:    3.0,
		StockBaseVolume: 200000,
		FundBaseVolume:  75000,
	}
}

// Quote is the simulator input for one asset.
type Quote struct {
	Price     decimal.Decimal
	Reference decimal.Decimal
	Category  models.AssetCategory
}

// Tick is one simulated step.
type Tick struct {
	Price         decimal.Decimal
	Volume        int64
	ChangePercent float64
}

var minPrice = decimal.New(1, -2)

// Simulator produces ticks from an injected random source. It is not safe
// for concurrent use.
type Simulator struct {
	params Params
	rng    *rand.Rand
}

// NewSimulator creates a Simulator. A nil rng is replaced by one seeded from
// the global source.
func NewSimulator(params Params, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Simulator{params: params, rng: rng}
}

// Next draws a uniform move within the category's volatility, clamps the
// result to the reference band and rounds it to cents.
func (s *Simulator) Next(q Quote) Tick {
	ref := q.Reference
	if !ref.IsPositive() {
		ref = q.Price
	}
	floor, ceiling := s.Bounds(ref)

	v := s.volatility(q.Category)
	change := (s.rng.Float64()*2 - 1) * v
	price := q.Price.Mul(decimal.NewFromFloat(1 + change)).Round(2)
	if price.LessThan(floor) {
		price = floor
	}
	if price.GreaterThan(ceiling) {
		price = ceiling
	}

	var move float64
	if q.Price.IsPositive() {
		move = price.Sub(q.Price).Div(q.Price).InexactFloat64()
	}

	return Tick{
		Price:         price,
		Volume:        s.volume(q.Category, math.Abs(move)),
		ChangePercent: move * 100,
	}
}

// Series chains n ticks starting from q, carrying each price forward.
func (s *Simulator) Series(q Quote, n int) []Tick {
	out := make([]Tick, 0, n)
	for i := 0; i < n; i++ {
		t := s.Next(q)
		out = append(out, t)
		q.Price = t.Price
	}
	return out
}

// Bounds returns the clamp band for a reference price, rounded inward to
// cents so a rounded price inside the band never escapes it.
func (s *Simulator) Bounds(ref decimal.Decimal) (floor, ceiling decimal.Decimal) {
	floor = ref.Mul(decimal.NewFromFloat(s.params.FloorRatio)).RoundCeil(2)
	if floor.LessThan(minPrice) {
		floor = minPrice
	}
	ceiling = ref.Mul(decimal.NewFromFloat(s.params.CeilingRatio)).RoundFloor(2)
	if ceiling.LessThan(floor) {
		ceiling = floor
	}
	return floor, ceiling
}

func (s *Simulator) volatility(c models.AssetCategory) float64 {
	if c == models.AssetCategoryFund {
		return s.params.FundVolatility
	}
	return s.params.StockVolatility
}

// volume is base ±20%, plus a term proportional to the size of the move,
// plus uniform noise up to a quarter of base.
func (s *Simulator) volume(c models.AssetCategory, absMove float64) int64 {
	base := float64(s.params.StockBaseVolume)
	if c == models.AssetCategoryFund {
		base = float64(s.params.FundBaseVolume)
	}
	v := base*(1+(s.rng.Float64()*0.4-0.2)) + absMove*base*5 + s.rng.Float64()*base/4
	return int64(math.Round(v))
}
