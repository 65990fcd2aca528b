package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"papertrade/internal/logger"
	"papertrade/internal/models"
)

// auditService appends audit entries. Write failures are logged and never
// surface to the operation being audited.
type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log records one action. An empty userID marks an operator action such as a
// manual update cycle.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      s.encode(action, changes),
	}
	if userID != "" {
		entry.UserID = &userID
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("failed to write audit entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}

// encode renders changes as JSON; decimal amounts become plain numbers.
func (s *auditService) encode(action string, changes map[string]interface{}) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		s.log.Warnw("unencodable audit changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}
