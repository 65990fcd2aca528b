package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Render money as JSON numbers rather than quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// AssetCategory classifies a tradable asset.
type AssetCategory string

// Supported asset categories. Mutual funds use the single canonical "fund" tag.
const (
	AssetCategoryStock AssetCategory = "stock"
	AssetCategoryFund  AssetCategory = "fund"
)

// ParseAssetCategory normalises a category tag, accepting the legacy
// mutual-fund spellings.
func ParseAssetCategory(raw string) (AssetCategory, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stock":
		return AssetCategoryStock, nil
	case "fund", "mutualfund", "mutual_fund", "mutual-fund":
		return AssetCategoryFund, nil
	}
	return "", fmt.Errorf("unknown asset category %q", raw)
}

// Asset is a simulated stock or mutual fund.
type Asset struct {
	Base
	Symbol         string          `gorm:"uniqueIndex;not null;size:32" json:"symbol"`
	Name           string          `gorm:"not null" json:"name"`
	Category       AssetCategory   `gorm:"not null;size:16;index" json:"category"`
	Price          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	ReferencePrice decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"reference_price"`
	Volume         int64           `gorm:"not null;default:0" json:"volume"`
	LastUpdated    time.Time       `json:"last_updated"`
}
