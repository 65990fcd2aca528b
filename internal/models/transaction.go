package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeSide is the direction of an executed trade.
type TradeSide string

// Trade sides.
const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Transaction is an append-only ledger entry for an executed trade.
type Transaction struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string          `gorm:"type:uuid;not null;index:idx_transactions_user_time,priority:1" json:"user_id"`
	AssetID    string          `gorm:"type:uuid;not null;index" json:"asset_id"`
	Side       TradeSide       `gorm:"not null;size:8" json:"type"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	Total      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total"`
	ExecutedAt time.Time       `gorm:"not null;index:idx_transactions_user_time,priority:2" json:"timestamp"`
	Asset      *Asset          `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
