package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"papertrade/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Money parses a decimal literal, failing loudly on typos in tests.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestUser creates a user with a hashed password, unique email and a
// 150000 balance.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithBalance(t, db, Money("150000"))
}

// CreateTestUserWithBalance creates a user with the given cash balance.
func CreateTestUserWithBalance(t *testing.T, db *gorm.DB, balance decimal.Decimal) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	n := nextID()
	user := &models.User{
		Username: fmt.Sprintf("user%d", n),
		Email:    fmt.Sprintf("user%d@test.com", n),
		Password: string(hash),
		Balance:  balance,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAsset creates an asset whose reference price equals its price.
func CreateTestAsset(t *testing.T, db *gorm.DB, category models.AssetCategory, price string) *models.Asset {
	t.Helper()

	n := nextID()
	p := Money(price)
	asset := &models.Asset{
		Symbol:         fmt.Sprintf("TST%d", n),
		Name:           fmt.Sprintf("Test Asset %d", n),
		Category:       category,
		Price:          p,
		ReferencePrice: p,
		Volume:         100000,
		LastUpdated:    time.Now().UTC(),
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestHolding creates a holding directly, bypassing trade execution.
func CreateTestHolding(t *testing.T, db *gorm.DB, userID, assetID string, quantity, avgPrice string) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		UserID:   userID,
		AssetID:  assetID,
		Quantity: Money(quantity),
		AvgPrice: Money(avgPrice),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestTransaction appends a ledger entry at the given time.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, assetID string, side models.TradeSide, quantity, price string, at time.Time) *models.Transaction {
	t.Helper()

	p := Money(price)
	q := Money(quantity)
	tx := &models.Transaction{
		UserID:     userID,
		AssetID:    assetID,
		Side:       side,
		Quantity:   q,
		Price:      p,
		Total:      p.Mul(q).Round(2),
		ExecutedAt: at,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// ReloadUser reads the user row back from the database.
func ReloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user %s: %v", id, err)
	}
	return &user
}
