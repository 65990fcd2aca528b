// Package valuation derives portfolio aggregates from holdings and prices.
//
// Aggregates are a projection: they are recomputed from holdings and current
// prices and are never used as an input to trading decisions.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PriceBook maps asset IDs to their current price.
type PriceBook map[string]decimal.Decimal

// Position is a holding resolved against the price book. It is either Live
// or Orphaned.
type Position interface {
	position()
}

// Live is a holding whose asset is priced.
type Live struct {
	Holding models.Holding
	Price   decimal.Decimal
}

// Orphaned is a holding whose asset no longer exists.
type Orphaned struct {
	Holding models.Holding
}

func (Live) position()     {}
func (Orphaned) position() {}

// Resolve classifies each holding exactly once.
func Resolve(holdings []models.Holding, prices PriceBook) []Position {
	out := make([]Position, 0, len(holdings))
	for _, h := range holdings {
		if p, ok := prices[h.AssetID]; ok {
			out = append(out, Live{Holding: h, Price: p})
			continue
		}
		out = append(out, Orphaned{Holding: h})
	}
	return out
}

// Aggregates is the derived valuation of one account.
type Aggregates struct {
	TotalInvested     decimal.Decimal `json:"totalInvested"`
	CurrentValue      decimal.Decimal `json:"currentValue"`
	ProfitLoss        decimal.Decimal `json:"profitLoss"`
	ProfitLossPercent decimal.Decimal `json:"profitLossPercent"`
}

// FromUser reads the cached aggregates stored on a user row.
func FromUser(u *models.User) Aggregates {
	return Aggregates{
		TotalInvested:     u.TotalInvested,
		CurrentValue:      u.CurrentValue,
		ProfitLoss:        u.ProfitLoss,
		ProfitLossPercent: u.ProfitLossPercent,
	}
}

// Equal reports whether two aggregates hold the same values.
func (a Aggregates) Equal(b Aggregates) bool {
	return a.TotalInvested.Equal(b.TotalInvested) &&
		a.CurrentValue.Equal(b.CurrentValue) &&
		a.ProfitLoss.Equal(b.ProfitLoss) &&
		a.ProfitLossPercent.Equal(b.ProfitLossPercent)
}

// ApplyTo copies the aggregates onto a user and stamps the valuation time.
func (a Aggregates) ApplyTo(u *models.User, at time.Time) {
	u.TotalInvested = a.TotalInvested
	u.CurrentValue = a.CurrentValue
	u.ProfitLoss = a.ProfitLoss
	u.ProfitLossPercent = a.ProfitLossPercent
	u.ValuedAt = &at
}

// Result is the outcome of revaluing one account.
type Result struct {
	Aggregates
	// Kept are the holdings that were valued.
	Kept []models.Holding
	// Dropped are orphaned holdings the caller must delete.
	Dropped []models.Holding
}

// Revalue computes aggregates over the live positions. Orphaned holdings are
// excluded and reported in Dropped. All outputs are rounded to cents and the
// percentage is zero when nothing is invested.
func Revalue(holdings []models.Holding, prices PriceBook) Result {
	invested := decimal.Zero
	current := decimal.Zero
	var res Result

	for _, pos := range Resolve(holdings, prices) {
		switch p := pos.(type) {
		case Live:
			qty := p.Holding.Quantity
			invested = invested.Add(qty.Mul(p.Holding.AvgPrice))
			current = current.Add(qty.Mul(p.Price))
			res.Kept = append(res.Kept, p.Holding)
		case Orphaned:
			res.Dropped = append(res.Dropped, p.Holding)
		}
	}

	invested = invested.Round(2)
	current = current.Round(2)
	pl := current.Sub(invested)
	pct := decimal.Zero
	if !invested.IsZero() {
		pct = pl.Div(invested).Mul(hundred).Round(2)
	}

	res.Aggregates = Aggregates{
		TotalInvested:     invested,
		CurrentValue:      current,
		ProfitLoss:        pl,
		ProfitLossPercent: pct,
	}
	return res
}
