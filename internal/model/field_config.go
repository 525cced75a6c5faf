package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType constants
const (
	FieldTypeText    = "TEXT"
	FieldTypeNumber  = "NUMBER"
	FieldTypeDate    = "DATE"
	FieldTypeBoolean = "BOOLEAN"
	FieldTypeSelect  = "SELECT"
)

// CaptureMode constants
const (
	CaptureManual = "MANUAL"
	CaptureOCR    = "OCR"
	CaptureCamera = "CAMERA"
	CaptureAuto   = "AUTO"
)

// Requirement constants
const (
	RequirementRequired = "REQUIRED"
	RequirementOptional = "OPTIONAL"
)

// Editability constants
const (
	EditabilityEditable = "EDITABLE"
	EditabilityReadOnly = "READ_ONLY"
)

// ValidationRules is the optional per-field rule set, stored as jsonb.
type ValidationRules struct {
	MinLength     *int     `json:"min_length,omitempty"`
	MaxLength     *int     `json:"max_length,omitempty"`
	Pattern       string   `json:"pattern,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

func (r ValidationRules) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *ValidationRules) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// DisplayCondition makes a field visible only when another field matches.
type DisplayCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // EQUALS, NOT_EQUALS, IN
	Value    interface{} `json:"value"`
}

// DisplayConditions is stored as a jsonb array.
type DisplayConditions []DisplayCondition

func (d DisplayConditions) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *DisplayConditions) Scan(value interface{}) error {
	return scanJSON(value, d)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type: %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// FieldConfiguration is one immutable version of a configurable field slot.
// Rows are append-only: an update deactivates the current row and inserts the
// next version. At most one row per scope key (tenant, facility, stage,
// field name) is active at any instant, enforced by a partial unique index.
type FieldConfiguration struct {
	ID                uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID          uuid.UUID         `gorm:"type:uuid;not null;index:idx_field_config_scope" json:"tenant_id"`
	FacilityID        *uuid.UUID        `gorm:"type:uuid;index:idx_field_config_scope" json:"facility_id"`
	Stage             int               `gorm:"type:int;not null;index:idx_field_config_scope" json:"stage"`
	FieldName         string            `gorm:"type:varchar(100);not null;index:idx_field_config_scope" json:"field_name"`
	FieldLabel        string            `gorm:"type:varchar(255);not null" json:"field_label"`
	FieldType         string            `gorm:"type:varchar(20);not null" json:"field_type"`
	CaptureMode       string            `gorm:"type:varchar(20);not null;default:'MANUAL'" json:"capture_mode"`
	Requirement       string            `gorm:"type:varchar(20);not null;default:'OPTIONAL'" json:"requirement"`
	Editability       string            `gorm:"type:varchar(20);not null;default:'EDITABLE'" json:"editability"`
	MinPhotoCount     int               `gorm:"type:int;default:0" json:"min_photo_count"`
	MaxPhotoCount     int               `gorm:"type:int;default:0" json:"max_photo_count"`
	DisplayOrder      int               `gorm:"type:int;default:0" json:"display_order"`
	HelpText          string            `gorm:"type:text" json:"help_text,omitempty"`
	Placeholder       string            `gorm:"type:varchar(255)" json:"placeholder,omitempty"`
	DisplayConditions DisplayConditions `gorm:"type:jsonb" json:"display_conditions,omitempty"`
	Rules             *ValidationRules  `gorm:"type:jsonb" json:"validation_rules,omitempty"`
	Version           int               `gorm:"type:int;not null;default:1" json:"version"`
	EffectiveFrom     time.Time         `gorm:"not null" json:"effective_from"`
	EffectiveTo       *time.Time        `json:"effective_to"`
	IsActive          bool              `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// EffectiveAt reports whether the row's effective window covers t.
// A null EffectiveTo means the row is open-ended and always passes the
// upper-bound check.
func (c FieldConfiguration) EffectiveAt(t time.Time) bool {
	if c.EffectiveFrom.After(t) {
		return false
	}
	return c.EffectiveTo == nil || !c.EffectiveTo.Before(t)
}

// protectedEvidenceFields are hard safety fields outside tenant customization.
// They can never be created or referenced as configurable field names.
var protectedEvidenceFields = map[string]struct{}{
	"photo":         {},
	"photos":        {},
	"document":      {},
	"documents":     {},
	"signature":     {},
	"timestamp":     {},
	"captured_at":   {},
	"gps_location":  {},
	"gps_latitude":  {},
	"gps_longitude": {},
}

// IsProtectedField reports whether name is a protected evidence field.
// Matching is case-insensitive.
func IsProtectedField(name string) bool {
	_, ok := protectedEvidenceFields[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// pinnedStageFields are business-critical fields that may never be relocated
// away from their stage.
var pinnedStageFields = map[int][]string{
	StageVendorDispatch:  {"po_number", "vendor_code"},
	StageGateEntry:       {"vehicle_number", "driver_name"},
	StageGrossWeighment:  {"gross_weight"},
	StageMaterialInspect: {"inspection_result", "inspector_id"},
	StageTareWeighment:   {"tare_weight", "net_weight"},
	StageGoodsReceipt:    {"grn_number"},
	StageGatePassExit:    {"gate_pass_number"},
}

// IsPinnedField reports whether fieldName is pinned to the given stage.
func IsPinnedField(stage int, fieldName string) bool {
	name := strings.ToLower(strings.TrimSpace(fieldName))
	for _, pinned := range pinnedStageFields[stage] {
		if pinned == name {
			return true
		}
	}
	return false
}
