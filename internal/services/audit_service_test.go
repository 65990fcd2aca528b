package services

import (
	"testing"

	"papertrade/internal/models"
	"papertrade/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	t.Run("account action", func(t *testing.T) {
		svc.Log(user.ID, "ADD_BALANCE", "user", user.ID, "10.0.0.1", map[string]interface{}{
			"amount": testutil.Money("100.50"),
		})

		var entry models.AuditLog
		if err := db.Where("action = ?", "ADD_BALANCE").First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if entry.UserID == nil || *entry.UserID != user.ID {
			t.Errorf("expected user %s, got %v", user.ID, entry.UserID)
		}
		if entry.Changes != `{"amount":100.5}` {
			t.Errorf("unexpected changes %s", entry.Changes)
		}
	})

	t.Run("operator action has no user", func(t *testing.T) {
		svc.Log("", "RUN_UPDATE_CYCLE", "scheduler", "", "", nil)

		var entry models.AuditLog
		if err := db.Where("action = ?", "RUN_UPDATE_CYCLE").First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if entry.UserID != nil {
			t.Errorf("expected no user, got %s", *entry.UserID)
		}
		if entry.Changes != "" {
			t.Errorf("expected no changes, got %s", entry.Changes)
		}
	})
}
