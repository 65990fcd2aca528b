package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/history"
	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/pricing"
	"papertrade/internal/valuation"
)

// UserServicer defines the contract for registration, login and deposits.
type UserServicer interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	AddBalance(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)
}

// Stats is the system-wide summary served by the stats endpoint.
type Stats struct {
	TotalUsers          int64                          `json:"totalUsers"`
	TotalAssets         int64                          `json:"totalAssets"`
	AssetsByCategory    map[models.AssetCategory]int64 `json:"assetsByCategory"`
	TotalPortfolioValue decimal.Decimal                `json:"totalPortfolioValue"`
	HighestPricedStock  *models.Asset                  `json:"highestPricedStock,omitempty"`
	LowestPricedStock   *models.Asset                  `json:"lowestPricedStock,omitempty"`
}

// NewAsset describes a catalog entry to create.
type NewAsset struct {
	Symbol   string
	Name     string
	Category models.AssetCategory
	Price    decimal.Decimal
	Volume   int64
}

// AssetServicer defines the contract for the asset catalog and its history.
type AssetServicer interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetAsset(ctx context.Context, idOrSymbol string) (*models.Asset, error)
	CreateAsset(ctx context.Context, input NewAsset) (*models.Asset, error)
	DeleteAsset(ctx context.Context, idOrSymbol string) (*models.Asset, error)
	GetPriceHistory(ctx context.Context, assetID string, limit int) ([]history.Sample, error)
	ApplyTick(ctx context.Context, asset *models.Asset, tick pricing.Tick, at time.Time) error
	SeedCatalog(ctx context.Context) (int, error)
	Backfill(ctx context.Context, assetID string, points int, interval time.Duration, end time.Time) (int, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// Portfolio is a user together with their valid holdings and live valuation.
type Portfolio struct {
	User       *models.User
	Holdings   []models.Holding
	Aggregates valuation.Aggregates
}

// RevalueOutcome describes the result of revaluing one account. It is also
// the payload of the portfolioUpdate event.
type RevalueOutcome struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
	valuation.Aggregates
	ValuedAt time.Time `json:"valuedAt"`
	Changed  bool      `json:"-"`
	Dropped  int       `json:"-"`
}

// PortfolioServicer defines the contract for valuation reads and writes.
type PortfolioServicer interface {
	GetPortfolio(ctx context.Context, userID string) (*Portfolio, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	PriceBook(ctx context.Context) (valuation.PriceBook, error)
	RevalueUser(ctx context.Context, userID string, prices valuation.PriceBook, at time.Time) (*RevalueOutcome, error)
	GetSnapshots(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error)
}

// TradeResult is the outcome of a buy or sell.
type TradeResult struct {
	Transaction *models.Transaction
	User        *models.User
	Asset       *models.Asset
	// Holding is nil when a sell closed the position.
	Holding *models.Holding
	// ProfitLoss is the realised result of a sell; zero for buys.
	ProfitLoss decimal.Decimal
}

// TradeServicer defines the contract for trade execution and the ledger.
type TradeServicer interface {
	Buy(ctx context.Context, userID, assetID string, quantity decimal.Decimal) (*TradeResult, error)
	Sell(ctx context.Context, userID, assetID string, quantity decimal.Decimal) (*TradeResult, error)
	GetTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// HistoryCache is a read-through cache for price history queries.
type HistoryCache interface {
	Get(ctx context.Context, assetID string, limit int) ([]history.Sample, bool, error)
	Set(ctx context.Context, assetID string, limit int, samples []history.Sample) error
	Invalidate(ctx context.Context, assetID string) error
}

// Notifier pushes an event to the subscribers of one account.
type Notifier interface {
	Publish(accountID, event string, payload interface{})
}
