package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/uuid"
	"papertrade/internal/valuation"
)

// portfolioService handles account valuation and portfolio history.
type portfolioService struct {
	db    *gorm.DB
	locks *AccountLocks
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, locks *AccountLocks) PortfolioServicer {
	return &portfolioService{db: db, locks: locks}
}

// GetPortfolio returns the user's valid holdings with their assets and a
// valuation at current prices. It does not write anything; orphaned holdings
// are left for the next revaluation to remove.
func (s *portfolioService) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	if !uuid.IsValid(userID) {
		return nil, apperrors.ErrUserNotFound
	}
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Holdings.Asset").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	prices := valuation.PriceBook{}
	for _, h := range user.Holdings {
		if h.Asset != nil {
			prices[h.AssetID] = h.Asset.Price
		}
	}
	res := valuation.Revalue(user.Holdings, prices)

	user.Holdings = nil
	return &Portfolio{
		User:       &user,
		Holdings:   res.Kept,
		Aggregates: res.Aggregates,
	}, nil
}

// ListUserIDs returns the IDs of every account.
func (s *portfolioService) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return ids, nil
}

// PriceBook reads the current price of every asset.
func (s *portfolioService) PriceBook(ctx context.Context) (valuation.PriceBook, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Select("id", "price").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	book := make(valuation.PriceBook, len(assets))
	for _, a := range assets {
		book[a.ID] = a.Price
	}
	return book, nil
}

// RevalueUser recomputes and stores one account's aggregates, deleting
// orphaned holdings. It holds the account lock for the duration.
func (s *portfolioService) RevalueUser(ctx context.Context, userID string, prices valuation.PriceBook, at time.Time) (*RevalueOutcome, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var out *RevalueOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		res, changed, err := revalueTx(tx, user, prices, at)
		if err != nil {
			return err
		}
		out = &RevalueOutcome{
			UserID:     user.ID,
			Balance:    user.Balance,
			Aggregates: res.Aggregates,
			ValuedAt:   at,
			Changed:    changed,
			Dropped:    len(res.Dropped),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSnapshots returns the user's valuation history, newest first.
func (s *portfolioService) GetSnapshots(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error) {
	scope := s.db.WithContext(ctx).Where("user_id = ?", userID)
	result, err := pagination.Query[models.PortfolioSnapshot](scope, page, "recorded_at DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return result, nil
}
