package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PortfolioSnapshot represents a point-in-time record of a user's valuation.
// This is immutable time-series data, no Base embed, no soft deletes.
type PortfolioSnapshot struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"type:uuid;not null;index:idx_snapshots_user_time,priority:1" json:"user_id"`
	RecordedAt    time.Time       `gorm:"not null;index:idx_snapshots_user_time,priority:2" json:"recorded_at"`
	Balance       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance"`
	TotalInvested decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_invested"`
	CurrentValue  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"current_value"`
	ProfitLoss    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"profit_loss"`
}

func (p *PortfolioSnapshot) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
