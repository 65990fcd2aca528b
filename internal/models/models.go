// Package models defines the GORM-backed persistence types.
package models

// All lists every model for AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Asset{},
		&Holding{},
		&Transaction{},
		&PricePoint{},
		&PortfolioSnapshot{},
		&AuditLog{},
	}
}
