package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is a user's position in one asset. Rows are hard-deleted when the
// quantity reaches zero so that (user_id, asset_id) stays unique.
type Holding struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_holdings_user_asset" json:"user_id"`
	AssetID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_holdings_user_asset" json:"asset_id"`
	Quantity  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"avg_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Asset     *Asset          `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (h *Holding) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
