package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vendor represents a material supplier dispatching against purchase orders
type Vendor struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	VendorCode    string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"vendor_code"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	TaxCode       string         `gorm:"type:varchar(50)" json:"tax_code"`
	ContactPerson string         `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string         `gorm:"type:varchar(50)" json:"phone"`
	Email         string         `gorm:"type:varchar(255)" json:"email"`
	Address       string         `gorm:"type:text" json:"address"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PurchaseOrderStatus constants
const (
	POStatusOpen      = "OPEN"
	POStatusReceiving = "RECEIVING"
	POStatusClosed    = "CLOSED"
	POStatusCancelled = "CANCELLED"
)

// PurchaseOrder is the commercial document a receipt transaction is raised against
type PurchaseOrder struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PONumber    string              `gorm:"type:varchar(100);uniqueIndex;not null" json:"po_number"`
	VendorID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Vendor      *Vendor             `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	Status      string              `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	TotalAmount decimal.Decimal     `gorm:"type:decimal(14,4);not null" json:"total_amount"`
	Note        string              `gorm:"type:text" json:"note"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// PurchaseOrderItem is a material line on a purchase order
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	MaterialName    string          `gorm:"type:varchar(255);not null" json:"material_name"`
	MaterialCode    string          `gorm:"type:varchar(100)" json:"material_code"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	Unit            string          `gorm:"type:varchar(20);not null;default:'KG'" json:"unit"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"line_total"`
}
