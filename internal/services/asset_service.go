package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/history"
	"papertrade/internal/logger"
	"papertrade/internal/models"
	"papertrade/internal/pricing"
)

// assetService handles the asset catalog, price updates and price history.
type assetService struct {
	db      *gorm.DB
	history *history.Log
	cache   HistoryCache

	// simMu guards sim, which is only used for backfills.
	simMu sync.Mutex
	sim   *pricing.Simulator
}

// NewAssetService creates a new AssetServicer. cache may be nil.
func NewAssetService(db *gorm.DB, log *history.Log, cache HistoryCache, sim *pricing.Simulator) AssetServicer {
	return &assetService{db: db, history: log, cache: cache, sim: sim}
}

// ListAssets returns every asset ordered by category then symbol.
func (s *assetService) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Order("category ASC, symbol ASC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return assets, nil
}

// GetAsset returns an asset by ID or symbol.
func (s *assetService) GetAsset(ctx context.Context, idOrSymbol string) (*models.Asset, error) {
	return findAsset(s.db.WithContext(ctx), idOrSymbol)
}

// CreateAsset adds an asset to the catalog at its starting price, which also
// becomes the reference price and the first history sample.
func (s *assetService) CreateAsset(ctx context.Context, input NewAsset) (*models.Asset, error) {
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	name := strings.TrimSpace(input.Name)
	switch {
	case symbol == "" || name == "":
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol and name are required")
	case !input.Price.IsPositive() || !input.Price.Equal(input.Price.Round(2)):
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be positive with at most 2 decimal places")
	case input.Volume < 0:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "volume must not be negative")
	}
	category, err := models.ParseAssetCategory(string(input.Category))
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	now := time.Now().UTC()
	asset := &models.Asset{
		Symbol:         symbol,
		Name:           name,
		Category:       category,
		Price:          input.Price,
		ReferencePrice: input.Price,
		Volume:         input.Volume,
		LastUpdated:    now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Deleted assets keep their symbol.
		var taken int64
		if err := tx.Unscoped().Model(&models.Asset{}).Where("symbol = ?", symbol).Count(&taken).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrStorageFailure, err)
		}
		if taken > 0 {
			return apperrors.ErrDuplicateSymbol
		}
		if err := tx.Create(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrStorageFailure, err)
		}
		return s.history.WithTx(tx).Append(ctx, asset.ID, history.Sample{
			Price:  asset.Price,
			Volume: asset.Volume,
			At:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("asset created", "asset_id", asset.ID, "symbol", asset.Symbol)
	return asset, nil
}

// DeleteAsset soft-deletes an asset. It disappears from the catalog and from
// price lookups at once; holdings of it are dropped as orphans by the next
// revaluation of each account.
func (s *assetService) DeleteAsset(ctx context.Context, idOrSymbol string) (*models.Asset, error) {
	asset, err := s.GetAsset(ctx, idOrSymbol)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Delete(&models.Asset{}, "id = ?", asset.ID)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrAssetNotFound
	}

	s.invalidate(ctx, asset.ID)
	logger.Get().Infow("asset deleted", "asset_id", asset.ID, "symbol", asset.Symbol)
	return asset, nil
}

// GetPriceHistory returns up to limit of the most recent samples, oldest
// first. A non-positive limit returns the full retained history.
func (s *assetService) GetPriceHistory(ctx context.Context, assetID string, limit int) ([]history.Sample, error) {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		samples, ok, err := s.cache.Get(ctx, asset.ID, limit)
		if err != nil {
			logger.Get().Warnw("history cache read failed", "asset_id", asset.ID, "error", err)
		} else if ok {
			return samples, nil
		}
	}

	samples, err := s.history.Recent(ctx, asset.ID, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, asset.ID, limit, samples); err != nil {
			logger.Get().Warnw("history cache write failed", "asset_id", asset.ID, "error", err)
		}
	}
	return samples, nil
}

// ApplyTick persists a simulated step: the asset's price and volume, and a
// new history sample trimmed to the cap, in one transaction.
func (s *assetService) ApplyTick(ctx context.Context, asset *models.Asset, tick pricing.Tick, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Asset{}).Where("id = ?", asset.ID).Updates(map[string]interface{}{
			"price":        tick.Price,
			"volume":       tick.Volume,
			"last_updated": at,
		})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrStorageFailure, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrAssetNotFound
		}
		return s.history.WithTx(tx).Append(ctx, asset.ID, history.Sample{
			Price:  tick.Price,
			Volume: tick.Volume,
			At:     at,
		})
	})
	if err != nil {
		return err
	}

	asset.Price = tick.Price
	asset.Volume = tick.Volume
	asset.LastUpdated = at
	s.invalidate(ctx, asset.ID)
	return nil
}

// SeedCatalog inserts the default catalog when no assets exist yet, deleted
// ones included, and records each asset's starting price as its first
// history sample.
func (s *assetService) SeedCatalog(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Asset{}).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log := s.history.WithTx(tx)
		for _, entry := range DefaultCatalog {
			price := decimal.RequireFromString(entry.Price)
			asset := &models.Asset{
				Symbol:         entry.Symbol,
				Name:           entry.Name,
				Category:       entry.Category,
				Price:          price,
				ReferencePrice: price,
				Volume:         entry.Volume,
				LastUpdated:    now,
			}
			if err := tx.Create(asset).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrStorageFailure, err)
			}
			if err := log.Append(ctx, asset.ID, history.Sample{Price: price, Volume: entry.Volume, At: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Get().Infow("seeded asset catalog", "assets", len(DefaultCatalog))
	return len(DefaultCatalog), nil
}

// Backfill generates points synthetic samples ending at end, spaced by
// interval, walking backwards from the asset's current price so the series
// joins the live price without a gap. The asset itself is not modified.
func (s *assetService) Backfill(ctx context.Context, assetID string, points int, interval time.Duration, end time.Time) (int, error) {
	if points < 1 || interval <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "points and interval must be positive")
	}
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if points > s.history.Cap() {
		points = s.history.Cap()
	}

	s.simMu.Lock()
	walk := s.sim.Series(pricing.Quote{
		Price:     asset.Price,
		Reference: asset.ReferencePrice,
		Category:  asset.Category,
	}, points-1)
	s.simMu.Unlock()

	samples := make([]history.Sample, points)
	samples[points-1] = history.Sample{Price: asset.Price, Volume: asset.Volume, At: end}
	for i, tick := range walk {
		idx := points - 2 - i
		samples[idx] = history.Sample{
			Price:  tick.Price,
			Volume: tick.Volume,
			At:     end.Add(-time.Duration(points-1-idx) * interval),
		}
	}

	if err := s.history.Append(ctx, asset.ID, samples...); err != nil {
		return 0, err
	}
	s.invalidate(ctx, asset.ID)
	return points, nil
}

// GetStats aggregates catalog and account totals.
func (s *assetService) GetStats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{AssetsByCategory: map[models.AssetCategory]int64{}}

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	var assets []models.Asset
	if err := db.Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	stats.TotalAssets = int64(len(assets))
	for i := range assets {
		a := &assets[i]
		stats.AssetsByCategory[a.Category]++
		if a.Category != models.AssetCategoryStock {
			continue
		}
		if stats.HighestPricedStock == nil || a.Price.GreaterThan(stats.HighestPricedStock.Price) {
			stats.HighestPricedStock = a
		}
		if stats.LowestPricedStock == nil || a.Price.LessThan(stats.LowestPricedStock.Price) {
			stats.LowestPricedStock = a
		}
	}

	var values []decimal.Decimal
	if err := db.Model(&models.User{}).Pluck("current_value", &values).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	stats.TotalPortfolioValue = total.Round(2)

	return stats, nil
}

func (s *assetService) invalidate(ctx context.Context, assetID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, assetID); err != nil {
		logger.Get().Warnw("history cache invalidation failed", "asset_id", assetID, "error", err)
	}
}
