package repository

import (
	"context"
	"errors"
	"time"

	"backend/internal/apperror"
	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FieldConfigRepository interface {
	Create(ctx context.Context, cfg *model.FieldConfiguration) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FieldConfiguration, error)
	// FindActiveByScope looks up the single active row for an exact scope key.
	// A nil facilityID matches only tenant-wide rows (facility_id IS NULL),
	// never facility-scoped ones. Returns apperror.ErrNotFound when absent.
	FindActiveByScope(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage int, fieldName string) (*model.FieldConfiguration, error)
	// Deactivate closes a row's effective window: is_active=false, effective_to=at.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListActive returns every active row for a tenant (any facility scope),
	// optionally narrowed to one stage, ordered by (stage, display_order).
	ListActive(ctx context.Context, tenantID uuid.UUID, stage *int) ([]model.FieldConfiguration, error)
	// ListActiveScoped returns active rows for one exact facility scope:
	// nil facilityID selects tenant-wide rows only.
	ListActiveScoped(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage *int) ([]model.FieldConfiguration, error)
}

type fieldConfigRepository struct {
	db *gorm.DB
}

func NewFieldConfigRepository(db *gorm.DB) FieldConfigRepository {
	return &fieldConfigRepository{db: db}
}

func (r *fieldConfigRepository) Create(ctx context.Context, cfg *model.FieldConfiguration) error {
	return GetDB(ctx, r.db).Create(cfg).Error
}

func (r *fieldConfigRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.FieldConfiguration, error) {
	var cfg model.FieldConfiguration
	if err := GetDB(ctx, r.db).First(&cfg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *fieldConfigRepository) FindActiveByScope(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage int, fieldName string) (*model.FieldConfiguration, error) {
	query := GetDB(ctx, r.db).
		Where("tenant_id = ? AND stage = ? AND field_name = ? AND is_active = true", tenantID, stage, fieldName)

	if facilityID != nil {
		query = query.Where("facility_id = ?", *facilityID)
	} else {
		query = query.Where("facility_id IS NULL")
	}

	var cfg model.FieldConfiguration
	if err := query.First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *fieldConfigRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&model.FieldConfiguration{}).
		Where("id = ? AND is_active = true", id).
		Updates(map[string]interface{}{
			"is_active":    false,
			"effective_to": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *fieldConfigRepository) ListActive(ctx context.Context, tenantID uuid.UUID, stage *int) ([]model.FieldConfiguration, error) {
	query := GetDB(ctx, r.db).
		Where("tenant_id = ? AND is_active = true", tenantID)
	if stage != nil {
		query = query.Where("stage = ?", *stage)
	}

	var cfgs []model.FieldConfiguration
	if err := query.Order("stage ASC, display_order ASC").Find(&cfgs).Error; err != nil {
		return nil, err
	}
	return cfgs, nil
}

func (r *fieldConfigRepository) ListActiveScoped(ctx context.Context, tenantID uuid.UUID, facilityID *uuid.UUID, stage *int) ([]model.FieldConfiguration, error) {
	query := GetDB(ctx, r.db).
		Where("tenant_id = ? AND is_active = true", tenantID)
	if facilityID != nil {
		query = query.Where("facility_id = ?", *facilityID)
	} else {
		query = query.Where("facility_id IS NULL")
	}
	if stage != nil {
		query = query.Where("stage = ?", *stage)
	}

	var cfgs []model.FieldConfiguration
	if err := query.Order("stage ASC, display_order ASC").Find(&cfgs).Error; err != nil {
		return nil, err
	}
	return cfgs, nil
}
