package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a trading account: cash balance plus a cached valuation of its
// holdings. The valuation fields are a projection recomputed on every update
// cycle and after every trade; ValuedAt records when they were last derived.
type User struct {
	Base
	Username          string          `gorm:"not null" json:"username"`
	Email             string          `gorm:"uniqueIndex;not null" json:"email"`
	Password          string          `gorm:"not null" json:"-"`
	Balance           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance"`
	TotalInvested     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_invested"`
	CurrentValue      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"current_value"`
	ProfitLoss        decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"profit_loss_percent"`
	ValuedAt          *time.Time      `json:"valued_at,omitempty"`
	Holdings          []Holding       `gorm:"foreignKey:UserID" json:"holdings,omitempty"`
}
