package repository

import (
	"context"
	"errors"

	"backend/internal/apperror"
	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionFilter narrows List queries.
type TransactionFilter struct {
	TenantID   *uuid.UUID
	FacilityID *uuid.UUID
	Status     string
	Stage      *int
	Page       int
	Limit      int
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *model.ReceiptTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ReceiptTransaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]model.ReceiptTransaction, int64, error)
	// SaveProgress persists a stage advance with a compare-and-swap on
	// (current_stage, status, locked). Returns false when the guard did not
	// match, i.e. another writer advanced or terminated the transaction first.
	SaveProgress(ctx context.Context, tx *model.ReceiptTransaction, fromStage int) (bool, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *model.ReceiptTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ReceiptTransaction, error) {
	var tx model.ReceiptTransaction
	if err := GetDB(ctx, r.db).Preload("Vendor").Preload("PurchaseOrder").First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter) ([]model.ReceiptTransaction, int64, error) {
	db := GetDB(ctx, r.db).Model(&model.ReceiptTransaction{})

	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.FacilityID != nil {
		db = db.Where("facility_id = ?", *filter.FacilityID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Stage != nil {
		db = db.Where("current_stage = ?", *filter.Stage)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var txs []model.ReceiptTransaction
	if err := db.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func (r *transactionRepository) SaveProgress(ctx context.Context, tx *model.ReceiptTransaction, fromStage int) (bool, error) {
	result := GetDB(ctx, r.db).
		Model(&model.ReceiptTransaction{}).
		Where("id = ? AND current_stage = ? AND status = ? AND locked = false",
			tx.ID, fromStage, model.TxStatusActive).
		Updates(map[string]interface{}{
			"current_stage": tx.CurrentStage,
			"status":        tx.Status,
			"locked":        tx.Locked,
			"stage_data":    tx.StageData,
			"completed_at":  tx.CompletedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
