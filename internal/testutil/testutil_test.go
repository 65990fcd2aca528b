package testutil_test

import (
	"testing"
	"time"

	"papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "assets", "holdings", "transactions", "price_points", "portfolio_snapshots", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDBIsIsolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestUser(t, first)

	var count int64
	second.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected isolated database, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}
	testutil.AssertMoney(t, "balance", user.Balance, "150000")

	asset := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "4000")
	testutil.AssertMoney(t, "reference", asset.ReferencePrice, "4000")

	holding := testutil.CreateTestHolding(t, db, user.ID, asset.ID, "10", "3900")
	testutil.AssertMoney(t, "quantity", holding.Quantity, "10")

	tx := testutil.CreateTestTransaction(t, db, user.ID, asset.ID, models.TradeSideBuy, "10", "3900", time.Now().UTC())
	testutil.AssertMoney(t, "total", tx.Total, "39000")

	reloaded := testutil.ReloadUser(t, db, user.ID)
	testutil.AssertMoney(t, "reloaded balance", reloaded.Balance, "150000")
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrAssetNotFound, "custom message")
	testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
