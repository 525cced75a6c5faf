package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// The seven fixed operational stages of a material receipt.
const (
	StageVendorDispatch    = 1 // L1_VENDOR_DISPATCH
	StageGateEntry         = 2 // L2_GATE_ENTRY
	StageGrossWeighment    = 3 // L3_GROSS_WEIGHMENT
	StageMaterialInspect   = 4 // L4_MATERIAL_INSPECTION
	StageTareWeighment     = 5 // L5_TARE_WEIGHMENT
	StageGoodsReceipt      = 6 // L6_GOODS_RECEIPT
	StageGatePassExit      = 7 // L7_GATE_PASS_EXIT

	MinStage = StageVendorDispatch
	MaxStage = StageGatePassExit
)

var stageNames = map[int]string{
	StageVendorDispatch:  "L1_VENDOR_DISPATCH",
	StageGateEntry:       "L2_GATE_ENTRY",
	StageGrossWeighment:  "L3_GROSS_WEIGHMENT",
	StageMaterialInspect: "L4_MATERIAL_INSPECTION",
	StageTareWeighment:   "L5_TARE_WEIGHMENT",
	StageGoodsReceipt:    "L6_GOODS_RECEIPT",
	StageGatePassExit:    "L7_GATE_PASS_EXIT",
}

// StageName returns the L-code for a stage number, or "UNKNOWN" when out of range.
func StageName(stage int) string {
	if name, ok := stageNames[stage]; ok {
		return name
	}
	return "UNKNOWN"
}

// TransactionStatus constants
const (
	TxStatusActive    = "ACTIVE"
	TxStatusCompleted = "COMPLETED"
	TxStatusRejected  = "REJECTED"
	TxStatusCancelled = "CANCELLED"
)

// StageRecord validation status constants
const (
	StageValidationPending  = "PENDING"
	StageValidationApproved = "APPROVED"
	StageValidationRejected = "REJECTED"
)

// StageRecord holds the captured data for one completed stage.
type StageRecord struct {
	Stage            int                    `json:"stage"`
	FieldValues      map[string]interface{} `json:"field_values"`
	CompletedBy      string                 `json:"completed_by"`
	CompletedAt      time.Time              `json:"completed_at"`
	EvidenceIDs      []string               `json:"evidence_ids"`
	ValidationStatus string                 `json:"validation_status"`
	Notes            string                 `json:"notes,omitempty"`
}

// StageDataMap stores completed StageRecords keyed by stage number.
// Sparse: only completed stages are present. Persisted as a jsonb column.
type StageDataMap map[int]StageRecord

// Value implements driver.Valuer for jsonb serialization.
func (m StageDataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb deserialization.
func (m *StageDataMap) Scan(value interface{}) error {
	if value == nil {
		*m = StageDataMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StageDataMap: %T", value)
	}
	if len(data) == 0 {
		*m = StageDataMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// ReceiptTransaction is a material receipt moving through the seven stages.
// Once Locked is true, or Status leaves ACTIVE, no further mutation is allowed.
type ReceiptTransaction struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TransactionCode string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_code"`
	TenantID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	FacilityID      *uuid.UUID     `gorm:"type:uuid;index" json:"facility_id"`
	VendorID        *uuid.UUID     `gorm:"type:uuid;index" json:"vendor_id"`
	Vendor          *Vendor        `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	PurchaseOrderID *uuid.UUID     `gorm:"type:uuid;index" json:"purchase_order_id"`
	PurchaseOrder   *PurchaseOrder `gorm:"foreignKey:PurchaseOrderID" json:"purchase_order,omitempty"`
	CurrentStage    int            `gorm:"type:int;not null;default:1" json:"current_stage"`
	Status          string         `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	Locked          bool           `gorm:"not null;default:false" json:"locked"`
	StageData       StageDataMap   `gorm:"type:jsonb;not null;default:'{}'" json:"stage_data"`
	CompletedAt     *time.Time     `json:"completed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
