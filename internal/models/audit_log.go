package models

// AuditLog records balance-changing user operations and admin actions.
// UserID is nil for actions not tied to an account.
type AuditLog struct {
	Base
	UserID       *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action       string  `gorm:"not null" json:"action"`
	ResourceType string  `gorm:"not null" json:"resource_type"`
	ResourceID   string  `json:"resource_id"`
	IPAddress    string  `json:"ip_address"`
	Changes      string  `json:"changes,omitempty"`
}
