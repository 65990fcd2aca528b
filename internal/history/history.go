// Package history maintains the bounded, time-ordered price log of each asset.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
)

// DefaultCap is the number of samples retained per asset.
const DefaultCap = 2000

// Sample is a single price observation.
type Sample struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
	At     time.Time       `json:"timestamp"`
}

// Trim orders samples by timestamp and keeps the most recent cap of them.
// The input slice is not modified.
func Trim(samples []Sample, limit int) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	if limit >= 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Log persists samples in the price_points table.
type Log struct {
	db    *gorm.DB
	limit int
}

// NewLog creates a Log retaining at most limit samples per asset.
func NewLog(db *gorm.DB, limit int) *Log {
	if limit < 1 {
		limit = DefaultCap
	}
	return &Log{db: db, limit: limit}
}

// WithTx returns a Log bound to tx.
func (l *Log) WithTx(tx *gorm.DB) *Log {
	return &Log{db: tx, limit: l.limit}
}

// Cap returns the per-asset retention limit.
func (l *Log) Cap() int { return l.limit }

// Append stores samples for an asset and drops the oldest rows beyond the cap.
func (l *Log) Append(ctx context.Context, assetID string, samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}

	// Only the newest cap samples could survive the trim anyway.
	samples = Trim(samples, l.limit)
	rows := make([]models.PricePoint, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, models.PricePoint{
			AssetID:    assetID,
			Price:      s.Price.Round(2),
			Volume:     s.Volume,
			RecordedAt: s.At,
		})
	}

	db := l.db.WithContext(ctx)
	if err := db.CreateInBatches(rows, 500).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return l.trim(ctx, assetID)
}

func (l *Log) trim(ctx context.Context, assetID string) error {
	db := l.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.PricePoint{}).Where("asset_id = ?", assetID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	if count <= int64(l.limit) {
		return nil
	}

	keep := l.db.WithContext(ctx).Model(&models.PricePoint{}).
		Select("id").
		Where("asset_id = ?", assetID).
		Order("recorded_at DESC, id DESC").
		Limit(l.limit)
	if err := l.db.WithContext(ctx).
		Where("asset_id = ? AND id NOT IN (?)", assetID, keep).
		Delete(&models.PricePoint{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return nil
}

// ReadAll returns the full history of an asset, oldest first.
func (l *Log) ReadAll(ctx context.Context, assetID string) ([]Sample, error) {
	var rows []models.PricePoint
	if err := l.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("recorded_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return toSamples(rows), nil
}

// Recent returns the latest n samples of an asset, oldest first.
func (l *Log) Recent(ctx context.Context, assetID string, n int) ([]Sample, error) {
	if n <= 0 {
		return l.ReadAll(ctx, assetID)
	}
	var rows []models.PricePoint
	if err := l.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("recorded_at DESC, id DESC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toSamples(rows), nil
}

func toSamples(rows []models.PricePoint) []Sample {
	out := make([]Sample, 0, len(rows))
	for _, r := range rows {
		out = append(out, Sample{Price: r.Price, Volume: r.Volume, At: r.RecordedAt})
	}
	return out
}
