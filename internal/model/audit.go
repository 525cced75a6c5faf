package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateTransaction = "CREATE_TRANSACTION"
	ActionCompleteStage     = "COMPLETE_STAGE"

	ActionCreateFieldConfig = "CREATE_FIELD_CONFIG"
	ActionUpdateFieldConfig = "UPDATE_FIELD_CONFIG"
	ActionMoveFieldConfig   = "MOVE_FIELD_CONFIG"

	ActionCreateVendor        = "CREATE_VENDOR"
	ActionUpdateVendor        = "UPDATE_VENDOR"
	ActionCreatePurchaseOrder = "CREATE_PURCHASE_ORDER"
)

// AuditLog tracks Who, What, and When for critical system changes.
// Details carries the old/new values of the mutation as serialized JSON.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID   *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
