package service

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/apperror"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateVendorRequest struct {
	TenantID      string `json:"tenant_id" binding:"required,uuid"`
	VendorCode    string `json:"vendor_code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	TaxCode       string `json:"tax_code"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Address       string `json:"address"`
}

type UpdateVendorRequest struct {
	Name          string `json:"name"`
	TaxCode       string `json:"tax_code"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"is_active"`
}

type VendorResponse struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	VendorCode    string `json:"vendor_code"`
	Name          string `json:"name"`
	TaxCode       string `json:"tax_code,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

// --- Interface ---

type VendorService interface {
	CreateVendor(ctx context.Context, req CreateVendorRequest, userID string) (VendorResponse, error)
	UpdateVendor(ctx context.Context, id string, req UpdateVendorRequest, userID string) (VendorResponse, error)
	GetVendor(ctx context.Context, id string) (VendorResponse, error)
	ListVendors(ctx context.Context, tenantID string, page, limit int) ([]VendorResponse, int64, error)
}

type vendorService struct {
	vendorRepo repository.VendorRepository
	auditRepo  repository.AuditRepository
}

func NewVendorService(vendorRepo repository.VendorRepository, auditRepo repository.AuditRepository) VendorService {
	return &vendorService{vendorRepo: vendorRepo, auditRepo: auditRepo}
}

// --- Implementation ---

func (s *vendorService) CreateVendor(ctx context.Context, req CreateVendorRequest, userID string) (VendorResponse, error) {
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return VendorResponse{}, fmt.Errorf("invalid tenant id: %w", err)
	}

	if _, err := s.vendorRepo.FindByCode(ctx, req.VendorCode); err == nil {
		return VendorResponse{}, fmt.Errorf("vendor code '%s' already exists", req.VendorCode)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return VendorResponse{}, fmt.Errorf("failed to check vendor code: %w", err)
	}

	vendor := model.Vendor{
		TenantID:      tenantID,
		VendorCode:    req.VendorCode,
		Name:          req.Name,
		TaxCode:       req.TaxCode,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		IsActive:      true,
	}

	if err := s.vendorRepo.Create(ctx, &vendor); err != nil {
		return VendorResponse{}, fmt.Errorf("failed to create vendor: %w", err)
	}

	s.logAudit(ctx, userID, &tenantID, model.ActionCreateVendor, vendor.ID.String(), vendor.Name, req)

	return toVendorResponse(vendor), nil
}

func (s *vendorService) UpdateVendor(ctx context.Context, id string, req UpdateVendorRequest, userID string) (VendorResponse, error) {
	vendorID, err := uuid.Parse(id)
	if err != nil {
		return VendorResponse{}, fmt.Errorf("invalid vendor id: %w", err)
	}

	vendor, err := s.vendorRepo.FindByID(ctx, vendorID)
	if err != nil {
		return VendorResponse{}, err
	}

	if req.Name != "" {
		vendor.Name = req.Name
	}
	if req.TaxCode != "" {
		vendor.TaxCode = req.TaxCode
	}
	if req.ContactPerson != "" {
		vendor.ContactPerson = req.ContactPerson
	}
	if req.Phone != "" {
		vendor.Phone = req.Phone
	}
	if req.Email != "" {
		vendor.Email = req.Email
	}
	if req.Address != "" {
		vendor.Address = req.Address
	}
	if req.IsActive != nil {
		vendor.IsActive = *req.IsActive
	}

	if err := s.vendorRepo.Update(ctx, vendor); err != nil {
		return VendorResponse{}, fmt.Errorf("failed to update vendor: %w", err)
	}

	s.logAudit(ctx, userID, &vendor.TenantID, model.ActionUpdateVendor, vendor.ID.String(), vendor.Name, req)

	return toVendorResponse(*vendor), nil
}

func (s *vendorService) GetVendor(ctx context.Context, id string) (VendorResponse, error) {
	vendorID, err := uuid.Parse(id)
	if err != nil {
		return VendorResponse{}, fmt.Errorf("invalid vendor id: %w", err)
	}

	vendor, err := s.vendorRepo.FindByID(ctx, vendorID)
	if err != nil {
		return VendorResponse{}, err
	}

	return toVendorResponse(*vendor), nil
}

func (s *vendorService) ListVendors(ctx context.Context, tenantID string, page, limit int) ([]VendorResponse, int64, error) {
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

	vendors, total, err := s.vendorRepo.List(ctx, tenant, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}

	res := make([]VendorResponse, 0, len(vendors))
	for _, v := range vendors {
		res = append(res, toVendorResponse(v))
	}
	return res, total, nil
}

// --- Helpers ---

func toVendorResponse(v model.Vendor) VendorResponse {
	return VendorResponse{
		ID:            v.ID.String(),
		TenantID:      v.TenantID.String(),
		VendorCode:    v.VendorCode,
		Name:          v.Name,
		TaxCode:       v.TaxCode,
		ContactPerson: v.ContactPerson,
		Phone:         v.Phone,
		Email:         v.Email,
		Address:       v.Address,
		IsActive:      v.IsActive,
		CreatedAt:     v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *vendorService) logAudit(ctx context.Context, userID string, tenantID *uuid.UUID, action, entityID, entityName string, details interface{}) {
	writeAuditEntry(ctx, s.auditRepo, userID, tenantID, action, entityID, entityName, details)
}
