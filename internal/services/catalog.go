package services

import "papertrade/internal/models"

// CatalogEntry describes one asset created at bootstrap.
type CatalogEntry struct {
	Symbol   string
	Name     string
	Category models.AssetCategory
	Price    string
	Volume   int64
}

// DefaultCatalog is the bootstrap set of stocks and mutual funds.
var DefaultCatalog = []CatalogEntry{
	{Symbol: "TCS", Name: "Tata Consultancy Services", Category: models.AssetCategoryStock, Price: "4000", Volume: 250000},
	{Symbol: "RELIANCE", Name: "Reliance Industries", Category: models.AssetCategoryStock, Price: "3000", Volume: 180000},
	{Symbol: "INFY", Name: "Infosys", Category: models.AssetCategoryStock, Price: "1800", Volume: 320000},
	{Symbol: "HDFC", Name: "HDFC Bank", Category: models.AssetCategoryStock, Price: "2500", Volume: 150000},
	{Symbol: "TATASTEEL", Name: "Tata Steel", Category: models.AssetCategoryStock, Price: "1200", Volume: 400000},
	{Symbol: "SBIBLU", Name: "SBI Bluechip Fund", Category: models.AssetCategoryFund, Price: "500", Volume: 75000},
	{Symbol: "ICICIEQ", Name: "ICICI Prudential Equity Fund", Category: models.AssetCategoryFund, Price: "600", Volume: 90000},
	{Symbol: "AXISMF", Name: "Axis Mutual Fund", Category: models.AssetCategoryFund, Price: "450", Volume: 65000},
	{Symbol: "KOTAKMF", Name: "Kotak Mutual Fund", Category: models.AssetCategoryFund, Price: "700", Volume: 85000},
}
