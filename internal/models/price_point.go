package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePoint is one entry in an asset's bounded price history.
// This is immutable time-series data, no Base embed, no soft deletes.
type PricePoint struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID    string          `gorm:"type:uuid;not null;index:idx_price_points_asset_time,priority:1" json:"asset_id"`
	Price      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	Volume     int64           `gorm:"not null" json:"volume"`
	RecordedAt time.Time       `gorm:"not null;index:idx_price_points_asset_time,priority:2" json:"recorded_at"`
}

func (p *PricePoint) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
