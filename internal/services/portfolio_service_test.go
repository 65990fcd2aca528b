package services

import (
	"context"
	"testing"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/testutil"
	"papertrade/internal/valuation"
)

func TestRevalueUser(t *testing.T) {
	t.Run("persists_aggregates_and_snapshot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())
		ctx := context.Background()
		user := testutil.CreateTestUser(t, db)
		stock := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "120")
		fund := testutil.CreateTestAsset(t, db, models.AssetCategoryFund, "40")
		testutil.CreateTestHolding(t, db, user.ID, stock.ID, "10", "100")
		testutil.CreateTestHolding(t, db, user.ID, fund.ID, "5", "50")

		prices, err := svc.PriceBook(ctx)
		testutil.AssertNoError(t, err)
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		out, err := svc.RevalueUser(ctx, user.ID, prices, at)
		testutil.AssertNoError(t, err)

		// invested 1000 + 250, value 1200 + 200
		testutil.AssertMoney(t, "invested", out.TotalInvested, "1250")
		testutil.AssertMoney(t, "value", out.CurrentValue, "1400")
		testutil.AssertMoney(t, "pl", out.ProfitLoss, "150")
		testutil.AssertMoney(t, "pct", out.ProfitLossPercent, "12")
		if !out.Changed {
			t.Error("expected first revaluation to report a change")
		}

		stored := testutil.ReloadUser(t, db, user.ID)
		testutil.AssertMoney(t, "stored value", stored.CurrentValue, "1400")
		if stored.ValuedAt == nil || !stored.ValuedAt.Equal(at) {
			t.Errorf("expected valued_at %s, got %v", at, stored.ValuedAt)
		}
		if n := countRows(t, db, &models.PortfolioSnapshot{}, "user_id = ?", user.ID); n != 1 {
			t.Errorf("expected 1 snapshot, got %d", n)
		}
	})

	t.Run("unchanged_prices_are_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())
		ctx := context.Background()
		user := testutil.CreateTestUser(t, db)
		asset := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "10")
		testutil.CreateTestHolding(t, db, user.ID, asset.ID, "3", "10")
		prices := valuation.PriceBook{asset.ID: testutil.Money("10")}
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		_, err := svc.RevalueUser(ctx, user.ID, prices, at)
		testutil.AssertNoError(t, err)
		out, err := svc.RevalueUser(ctx, user.ID, prices, at.Add(time.Minute))
		testutil.AssertNoError(t, err)

		if out.Changed {
			t.Error("expected second revaluation to report no change")
		}
		if n := countRows(t, db, &models.PortfolioSnapshot{}, "user_id = ?", user.ID); n != 1 {
			t.Errorf("expected a single snapshot, got %d", n)
		}
	})

	t.Run("drops_orphaned_holdings", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())
		ctx := context.Background()
		user := testutil.CreateTestUser(t, db)
		live := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "20")
		gone := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "30")
		testutil.CreateTestHolding(t, db, user.ID, live.ID, "2", "20")
		testutil.CreateTestHolding(t, db, user.ID, gone.ID, "4", "30")
		if err := db.Delete(&models.Asset{}, "id = ?", gone.ID).Error; err != nil {
			t.Fatalf("failed to delete asset: %v", err)
		}

		prices, err := svc.PriceBook(ctx)
		testutil.AssertNoError(t, err)
		out, err := svc.RevalueUser(ctx, user.ID, prices, time.Now().UTC())
		testutil.AssertNoError(t, err)

		if out.Dropped != 1 {
			t.Errorf("expected 1 dropped holding, got %d", out.Dropped)
		}
		testutil.AssertMoney(t, "invested", out.TotalInvested, "40")
		testutil.AssertMoney(t, "value", out.CurrentValue, "40")
		if n := countRows(t, db, &models.Holding{}, "user_id = ?", user.ID); n != 1 {
			t.Errorf("expected orphan removed, got %d holdings", n)
		}
	})

	t.Run("stale_price_book_keeps_live_holding", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())
		user := testutil.CreateTestUser(t, db)
		asset := testutil.CreateTestAsset(t, db, models.AssetCategoryFund, "15")
		testutil.CreateTestHolding(t, db, user.ID, asset.ID, "2", "10")

		out, err := svc.RevalueUser(context.Background(), user.ID, valuation.PriceBook{}, time.Now().UTC())
		testutil.AssertNoError(t, err)

		if out.Dropped != 0 {
			t.Errorf("expected nothing dropped, got %d", out.Dropped)
		}
		testutil.AssertMoney(t, "value", out.CurrentValue, "30")
	})

	t.Run("unknown_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())

		_, err := svc.RevalueUser(context.Background(), "01890a5d-ac96-774b-bcce-b302099a8057", valuation.PriceBook{}, time.Now().UTC())
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestGetPortfolio(t *testing.T) {
	t.Run("live_valuation_without_writes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())
		user := testutil.CreateTestUser(t, db)
		asset := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "110")
		gone := testutil.CreateTestAsset(t, db, models.AssetCategoryStock, "5")
		testutil.CreateTestHolding(t, db, user.ID, asset.ID, "10", "100")
		testutil.CreateTestHolding(t, db, user.ID, gone.ID, "1", "5")
		db.Delete(&models.Asset{}, "id = ?", gone.ID)

		p, err := svc.GetPortfolio(context.Background(), user.ID)
		testutil.AssertNoError(t, err)

		if len(p.Holdings) != 1 || p.Holdings[0].AssetID != asset.ID {
			t.Fatalf("expected only the live holding, got %+v", p.Holdings)
		}
		if p.Holdings[0].Asset == nil {
			t.Error("expected holding asset to be populated")
		}
		testutil.AssertMoney(t, "value", p.Aggregates.CurrentValue, "1100")
		testutil.AssertMoney(t, "pl", p.Aggregates.ProfitLoss, "100")
		testutil.AssertMoney(t, "balance", p.User.Balance, "150000")

		if n := countRows(t, db, &models.Holding{}, "user_id = ?", user.ID); n != 2 {
			t.Errorf("expected reads to leave holdings untouched, got %d", n)
		}
		if n := countRows(t, db, &models.PortfolioSnapshot{}, "user_id = ?", user.ID); n != 0 {
			t.Errorf("expected no snapshot from a read, got %d", n)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPortfolioService(db, NewAccountLocks())

		_, err := svc.GetPortfolio(context.Background(), "not-a-uuid")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestListUserIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPortfolioService(db, NewAccountLocks())
	testutil.CreateTestUser(t, db)
	testutil.CreateTestUser(t, db)

	ids, err := svc.ListUserIDs(context.Background())
	testutil.AssertNoError(t, err)
	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %d", len(ids))
	}
}

func TestGetSnapshots(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPortfolioService(db, NewAccountLocks())
	user := testutil.CreateTestUser(t, db)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		snap := &models.PortfolioSnapshot{
			UserID:       user.ID,
			RecordedAt:   base.Add(time.Duration(i) * time.Hour),
			Balance:      testutil.Money("100"),
			CurrentValue: testutil.Money("10"),
		}
		if err := db.Create(snap).Error; err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}
	}

	page, err := svc.GetSnapshots(context.Background(), user.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 5 || page.TotalPages != 3 {
		t.Errorf("unexpected page metadata %+v", page)
	}
	if len(page.Data) != 2 || !page.Data[0].RecordedAt.Equal(base.Add(4*time.Hour)) {
		t.Errorf("expected newest snapshots first, got %+v", page.Data)
	}
}
