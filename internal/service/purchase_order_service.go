package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type PurchaseOrderItemRequest struct {
	MaterialName string `json:"material_name" binding:"required"`
	MaterialCode string `json:"material_code"`
	Quantity     string `json:"quantity" binding:"required"`   // Decimal string, e.g. "1250.500"
	Unit         string `json:"unit"`
	UnitPrice    string `json:"unit_price" binding:"required"` // Decimal string
}

type CreatePurchaseOrderRequest struct {
	TenantID string                     `json:"tenant_id" binding:"required,uuid"`
	PONumber string                     `json:"po_number" binding:"required"`
	VendorID string                     `json:"vendor_id" binding:"required,uuid"`
	Note     string                     `json:"note"`
	Items    []PurchaseOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type PurchaseOrderItemResponse struct {
	ID           string `json:"id"`
	MaterialName string `json:"material_name"`
	MaterialCode string `json:"material_code,omitempty"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit"`
	UnitPrice    string `json:"unit_price"`
	LineTotal    string `json:"line_total"`
}

type PurchaseOrderResponse struct {
	ID          string                      `json:"id"`
	TenantID    string                      `json:"tenant_id"`
	PONumber    string                      `json:"po_number"`
	VendorID    string                      `json:"vendor_id"`
	VendorName  string                      `json:"vendor_name,omitempty"`
	Status      string                      `json:"status"`
	TotalAmount string                      `json:"total_amount"`
	Note        string                      `json:"note,omitempty"`
	Items       []PurchaseOrderItemResponse `json:"items"`
	CreatedAt   string                      `json:"created_at"`
}

// --- Interface ---

type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrderResponse, error)
	ListPurchaseOrders(ctx context.Context, tenantID, status string, page, limit int) ([]PurchaseOrderResponse, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type purchaseOrderService struct {
	poRepo     repository.PurchaseOrderRepository
	vendorRepo repository.VendorRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewPurchaseOrderService(
	poRepo repository.PurchaseOrderRepository,
	vendorRepo repository.VendorRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) PurchaseOrderService {
	return &purchaseOrderService{
		poRepo:     poRepo,
		vendorRepo: vendorRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
	}
}

// --- Implementation ---

func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error) {
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return PurchaseOrderResponse{}, fmt.Errorf("invalid tenant id: %w", err)
	}
	vendorID, err := uuid.Parse(req.VendorID)
	if err != nil {
		return PurchaseOrderResponse{}, fmt.Errorf("invalid vendor id: %w", err)
	}

	if _, err := s.vendorRepo.FindByID(ctx, vendorID); err != nil {
		return PurchaseOrderResponse{}, fmt.Errorf("vendor not found: %w", err)
	}

	total := decimal.Zero
	items := make([]model.PurchaseOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		qty, parseErr := decimal.NewFromString(item.Quantity)
		if parseErr != nil {
			return PurchaseOrderResponse{}, fmt.Errorf("invalid quantity for '%s': %w", item.MaterialName, parseErr)
		}
		price, parseErr := decimal.NewFromString(item.UnitPrice)
		if parseErr != nil {
			return PurchaseOrderResponse{}, fmt.Errorf("invalid unit price for '%s': %w", item.MaterialName, parseErr)
		}

		lineTotal := qty.Mul(price)
		total = total.Add(lineTotal)

		unit := item.Unit
		if unit == "" {
			unit = "KG"
		}
		items = append(items, model.PurchaseOrderItem{
			MaterialName: item.MaterialName,
			MaterialCode: item.MaterialCode,
			Quantity:     qty,
			Unit:         unit,
			UnitPrice:    price,
			LineTotal:    lineTotal,
		})
	}

	po := model.PurchaseOrder{
		TenantID:    tenantID,
		PONumber:    req.PONumber,
		VendorID:    vendorID,
		Status:      model.POStatusOpen,
		TotalAmount: total,
		Note:        req.Note,
		Items:       items,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.poRepo.Create(txCtx, &po); createErr != nil {
			return fmt.Errorf("failed to create purchase order: %w", createErr)
		}
		writeAuditEntry(txCtx, s.auditRepo, userID, &tenantID, model.ActionCreatePurchaseOrder, po.ID.String(), po.PONumber, map[string]interface{}{
			"po_number": po.PONumber,
			"total":     total.StringFixed(4),
		})
		return nil
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	return toPurchaseOrderResponse(po), nil
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrderResponse, error) {
	poID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseOrderResponse{}, fmt.Errorf("invalid purchase order id: %w", err)
	}

	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	return toPurchaseOrderResponse(*po), nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, tenantID, status string, page, limit int) ([]PurchaseOrderResponse, int64, error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid tenant id: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	pos, total, err := s.poRepo.List(ctx, tenant, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	res := make([]PurchaseOrderResponse, 0, len(pos))
	for _, po := range pos {
		res = append(res, toPurchaseOrderResponse(po))
	}
	return res, total, nil
}

func (s *purchaseOrderService) UpdateStatus(ctx context.Context, id, status string) error {
	poID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid purchase order id: %w", err)
	}

	switch status {
	case model.POStatusOpen, model.POStatusReceiving, model.POStatusClosed, model.POStatusCancelled:
	default:
		return fmt.Errorf("invalid purchase order status: %s", status)
	}

	return s.poRepo.UpdateStatus(ctx, poID, status)
}

// --- Helpers ---

func toPurchaseOrderResponse(po model.PurchaseOrder) PurchaseOrderResponse {
	resp := PurchaseOrderResponse{
		ID:          po.ID.String(),
		TenantID:    po.TenantID.String(),
		PONumber:    po.PONumber,
		VendorID:    po.VendorID.String(),
		Status:      po.Status,
		TotalAmount: po.TotalAmount.StringFixed(4),
		Note:        po.Note,
		CreatedAt:   po.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if po.Vendor != nil {
		resp.VendorName = po.Vendor.Name
	}
	resp.Items = make([]PurchaseOrderItemResponse, 0, len(po.Items))
	for _, item := range po.Items {
		resp.Items = append(resp.Items, PurchaseOrderItemResponse{
			ID:           item.ID.String(),
			MaterialName: item.MaterialName,
			MaterialCode: item.MaterialCode,
			Quantity:     item.Quantity.StringFixed(4),
			Unit:         item.Unit,
			UnitPrice:    item.UnitPrice.StringFixed(4),
			LineTotal:    item.LineTotal.StringFixed(4),
		})
	}
	return resp
}
