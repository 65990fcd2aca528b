package models

import (
	"time"

	"gorm.io/gorm"

	"papertrade/internal/uuid"
)

// Base holds the columns shared by users, assets and audit entries, which are
// soft-deleted. Append-only rows and holdings carry their own ID instead.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// assignID sets a UUIDv7 unless the caller already chose an id.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.New()
	}
}
