package database

import (
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.Vendor{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.ReceiptTransaction{},
		&model.FieldConfiguration{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	// One active configuration per scope key. AutoMigrate cannot express a
	// partial index, and facility_id is nullable, so tenant-level rows are
	// collapsed onto a sentinel uuid to collide with each other.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_field_configurations_active_scope
		ON field_configurations (
			tenant_id,
			COALESCE(facility_id, '00000000-0000-0000-0000-000000000000'::uuid),
			stage,
			field_name
		)
		WHERE is_active
	`).Error
	if err != nil {
		log.Println("WARNING: Failed to create active config scope index:", err)
	}

	return db, nil
}
