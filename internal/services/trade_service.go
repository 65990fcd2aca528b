package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/logger"
	"papertrade/internal/models"
	"papertrade/internal/uuid"
	"papertrade/internal/valuation"
)

const maxTransactionsLimit = 500

// QuantityPlaces is the scale of holdings.quantity.
const QuantityPlaces = 4

var minTradeValue = decimal.New(1, -2)

func checkQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be a positive number")
	}
	if !quantity.Equal(quantity.Truncate(QuantityPlaces)) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("quantity supports at most %d decimal places", QuantityPlaces))
	}
	return nil
}

// checkTradeValue rejects trades worth less than one cent, which would
// otherwise settle for 0.00.
func checkTradeValue(value decimal.Decimal) error {
	if value.Round(2).LessThan(minTradeValue) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "trade value must be at least 0.01")
	}
	return nil
}

// tradeService executes buys and sells. Every mutation of an account runs
// under its AccountLocks entry and inside one database transaction that
// also row-locks the user and holding.
type tradeService struct {
	db           *gorm.DB
	locks        *AccountLocks
	notifier     Notifier
	defaultLimit int
	now          func() time.Time
}

// NewTradeService creates a new TradeServicer. notifier may be nil.
func NewTradeService(db *gorm.DB, locks *AccountLocks, notifier Notifier, defaultLimit int) TradeServicer {
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	return &tradeService{
		db:           db,
		locks:        locks,
		notifier:     notifier,
		defaultLimit: defaultLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Buy debits quantity × price and merges the purchase into the holding at
// the weighted-average price.
func (s *tradeService) Buy(ctx context.Context, userID, assetID string, quantity decimal.Decimal) (*TradeResult, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	var result *TradeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		asset, err := findAsset(tx, assetID)
		if err != nil {
			return err
		}

		value := quantity.Mul(asset.Price)
		if err := checkTradeValue(value); err != nil {
			return err
		}
		cost := value.Round(2)
		if user.Balance.LessThan(value) {
			return apperrors.WithMessage(apperrors.ErrInsufficientBalance,
				fmt.Sprintf("Insufficient balance. Required: %s, Available: %s", cost.StringFixed(2), user.Balance.StringFixed(2)))
		}

		holding, err := s.lockHolding(tx, user.ID, asset.ID)
		if err != nil {
			return err
		}
		if holding == nil {
			holding = &models.Holding{
				UserID:   user.ID,
				AssetID:  asset.ID,
				Quantity: quantity,
				AvgPrice: asset.Price,
			}
			if err := tx.Create(holding).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrStorageFailure, err)
			}
		} else {
			newQty := holding.Quantity.Add(quantity)
			holding.AvgPrice = holding.Quantity.Mul(holding.AvgPrice).
				Add(quantity.Mul(asset.Price)).
				Div(newQty).
				Round(2)
			holding.Quantity = newQty
			if err := tx.Model(&models.Holding{}).Where("id = ?", holding.ID).Updates(map[string]interface{}{
				"quantity":  holding.Quantity,
				"avg_price": holding.AvgPrice,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrStorageFailure, err)
			}
		}

		user.Balance = user.Balance.Sub(cost)
		result, err = s.settle(tx, user, asset, holding, models.TradeSideBuy, quantity, cost, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(result)
	return result, nil
}

// Sell credits quantity × price and reduces the holding, removing it when it
// reaches zero. The realised profit is reported but not stored.
func (s *tradeService) Sell(ctx context.Context, userID, assetID string, quantity decimal.Decimal) (*TradeResult, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	var result *TradeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		asset, err := findAsset(tx, assetID)
		if err != nil {
			return err
		}

		value := quantity.Mul(asset.Price)
		if err := checkTradeValue(value); err != nil {
			return err
		}

		holding, err := s.lockHolding(tx, user.ID, asset.ID)
		if err != nil {
			return err
		}
		if holding == nil || holding.Quantity.LessThan(quantity) {
			held := decimal.Zero
			if holding != nil {
				held = holding.Quantity
			}
			return apperrors.WithMessage(apperrors.ErrInsufficientQuantity,
				fmt.Sprintf("Insufficient quantity. Requested: %s, Held: %s", quantity.String(), held.String()))
		}

		proceeds := value.Round(2)
		profit := asset.Price.Sub(holding.AvgPrice).Mul(quantity).Round(2)

		holding.Quantity = holding.Quantity.Sub(quantity)
		if holding.Quantity.IsZero() {
			if err := tx.Delete(&models.Holding{}, "id = ?", holding.ID).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrStorageFailure, err)
			}
			holding = nil
		} else if err := tx.Model(&models.Holding{}).Where("id = ?", holding.ID).
			Update("quantity", holding.Quantity).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrStorageFailure, err)
		}

		user.Balance = user.Balance.Add(proceeds)
		result, err = s.settle(tx, user, asset, holding, models.TradeSideSell, quantity, proceeds, now)
		if err != nil {
			return err
		}
		result.ProfitLoss = profit
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(result)
	return result, nil
}

// GetTransactions returns the user's most recent trades, newest first.
func (s *tradeService) GetTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if !uuid.IsValid(userID) {
		return nil, apperrors.ErrUserNotFound
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxTransactionsLimit {
		limit = maxTransactionsLimit
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	if count == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	var txns []models.Transaction
	if err := s.db.WithContext(ctx).
		Preload("Asset").
		Where("user_id = ?", userID).
		Order("executed_at DESC, id DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return txns, nil
}

func (s *tradeService) lockHolding(tx *gorm.DB, userID, assetID string) (*models.Holding, error) {
	var holding models.Holding
	err := tx.Clauses(forUpdate).Where("user_id = ? AND asset_id = ?", userID, assetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	return &holding, nil
}

// settle writes the new balance and the ledger entry, then refreshes the
// account's aggregates. All within tx.
func (s *tradeService) settle(
	tx *gorm.DB,
	user *models.User,
	asset *models.Asset,
	holding *models.Holding,
	side models.TradeSide,
	quantity, total decimal.Decimal,
	at time.Time,
) (*TradeResult, error) {
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("balance", user.Balance).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}

	txn := &models.Transaction{
		UserID:     user.ID,
		AssetID:    asset.ID,
		Side:       side,
		Quantity:   quantity,
		Price:      asset.Price,
		Total:      total,
		ExecutedAt: at,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageFailure, err)
	}
	txn.Asset = asset

	if _, _, err := revalueTx(tx, user, valuation.PriceBook{asset.ID: asset.Price}, at); err != nil {
		return nil, err
	}

	if holding != nil {
		holding.Asset = asset
	}
	return &TradeResult{
		Transaction: txn,
		User:        user,
		Asset:       asset,
		Holding:     holding,
	}, nil
}

func (s *tradeService) notify(result *TradeResult) {
	u := result.User
	logger.Get().Debugw("trade executed",
		"user_id", u.ID,
		"asset_id", result.Asset.ID,
		"side", result.Transaction.Side,
		"quantity", result.Transaction.Quantity.String(),
	)
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(u.ID, "portfolioUpdate", &RevalueOutcome{
		UserID:     u.ID,
		Balance:    u.Balance,
		Aggregates: valuation.FromUser(u),
		ValuedAt:   result.Transaction.ExecutedAt,
	})
}
