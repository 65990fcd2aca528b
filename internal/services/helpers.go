package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/uuid"
	"papertrade/internal/valuation"
)

// forUpdate takes a row lock on Postgres. SQLite ignores the clause and relies
// on its database-level write lock.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// lockUser loads a user inside tx with a row lock.
func lockUser(tx *gorm.DB, userID string) (*models.User, error) {
	if !uuid.IsValid(userID) {
		return nil, apperrors.ErrUserNotFound
	}
	var user models.User
	if err := tx.Clauses(forUpdate).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return &user, nil
}

// findAsset looks an asset up by ID, falling back to its symbol.
func findAsset(db *gorm.DB, idOrSymbol string) (*models.Asset, error) {
	var asset models.Asset
	var err error
	if uuid.IsValid(idOrSymbol) {
		err = db.First(&asset, "id = ?", idOrSymbol).Error
	} else {
		err = db.First(&asset, "symbol = ?", idOrSymbol).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return &asset, nil
}

// pricesFor returns the current price of every existing asset in ids.
func pricesFor(tx *gorm.DB, ids []string) (valuation.PriceBook, error) {
	book := valuation.PriceBook{}
	if len(ids) == 0 {
		return book, nil
	}
	var assets []models.Asset
	if err := tx.Select("id", "price").Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	for _, a := range assets {
		book[a.ID] = a.Price
	}
	return book, nil
}

// revalueTx recomputes and persists a user's aggregates inside tx. Holdings
// whose asset is absent from prices are looked up again before being
// treated as orphaned, so a stale price book never drops a live position.
// A snapshot row is written whenever the aggregates change.
func revalueTx(tx *gorm.DB, user *models.User, prices valuation.PriceBook, at time.Time) (valuation.Result, bool, error) {
	var holdings []models.Holding
	if err := tx.Where("user_id = ?", user.ID).Find(&holdings).Error; err != nil {
		return valuation.Result{}, false, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	var missing []string
	for _, h := range holdings {
		if _, ok := prices[h.AssetID]; !ok {
			missing = append(missing, h.AssetID)
		}
	}
	if len(missing) > 0 {
		extra, err := pricesFor(tx, missing)
		if err != nil {
			return valuation.Result{}, false, err
		}
		merged := make(valuation.PriceBook, len(prices)+len(extra))
		for k, v := range prices {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		prices = merged
	}

	res := valuation.Revalue(holdings, prices)

	if len(res.Dropped) > 0 {
		ids := make([]string, 0, len(res.Dropped))
		for _, h := range res.Dropped {
			ids = append(ids, h.ID)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Holding{}).Error; err != nil {
			return valuation.Result{}, false, apperrors.Wrap(apperrors.ErrStorageFailure, err)
		}
	}

	changed := user.ValuedAt == nil || !valuation.FromUser(user).Equal(res.Aggregates)
	res.Aggregates.ApplyTo(user, at)
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"total_invested":      user.TotalInvested,
		"current_value":       user.CurrentValue,
		"profit_loss":         user.ProfitLoss,
		"profit_loss_percent": user.ProfitLossPercent,
		"valued_at":           at,
	}).Error; err != nil {
		return valuation.Result{}, false, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	if changed {
		snapshot := &models.PortfolioSnapshot{
			UserID:        user.ID,
			RecordedAt:    at,
			Balance:       user.Balance,
			TotalInvested: user.TotalInvested,
			CurrentValue:  user.CurrentValue,
			ProfitLoss:    user.ProfitLoss,
		}
		if err := tx.Create(snapshot).Error; err != nil {
			return valuation.Result{}, false, apperrors.Wrap(apperrors.ErrStorageFailure, err)
		}
	}

	return res, changed, nil
}
