package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/validation"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateTransactionRequest struct {
	TransactionCode string `json:"transaction_code" binding:"required"`
	TenantID        string `json:"tenant_id" binding:"required,uuid"`
	FacilityID      string `json:"facility_id" binding:"omitempty,uuid"`
	VendorID        string `json:"vendor_id" binding:"omitempty,uuid"`
	PurchaseOrderID string `json:"purchase_order_id" binding:"omitempty,uuid"`
}

// CompleteStageRequest carries the captured data for one stage.
type CompleteStageRequest struct {
	Stage            int                    `json:"stage" binding:"required,min=1,max=7"`
	FieldValues      map[string]interface{} `json:"field_values"`
	CompletedBy      string                 `json:"completed_by" binding:"required"`
	CompletedAt      *time.Time             `json:"completed_at"`
	EvidenceIDs      []string               `json:"evidence_ids"`
	ValidationStatus string                 `json:"validation_status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	Notes            string                 `json:"notes"`
}

// ValidationResult reports every rule violation from one transition query.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ProcessingResult is the outcome of a completeStage call.
type ProcessingResult struct {
	Success       bool     `json:"success"`
	TransactionID string   `json:"transaction_id"`
	NewStage      *int     `json:"new_stage,omitempty"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
}

type TransactionResponse struct {
	ID              string                    `json:"id"`
	TransactionCode string                    `json:"transaction_code"`
	TenantID        string                    `json:"tenant_id"`
	FacilityID      *string                   `json:"facility_id"`
	VendorID        *string                   `json:"vendor_id"`
	PurchaseOrderID *string                   `json:"purchase_order_id"`
	CurrentStage    int                       `json:"current_stage"`
	StageName       string                    `json:"stage_name"`
	Status          string                    `json:"status"`
	Locked          bool                      `json:"locked"`
	StageData       map[int]model.StageRecord `json:"stage_data"`
	CompletedAt     *string                   `json:"completed_at"`
	CreatedAt       string                    `json:"created_at"`
}

// --- Interface ---

// StageService is the state machine driving a material receipt through the
// seven fixed stages. Sequencing rules and the two safety guardrails are
// compiled in; only the per-stage field schema is tenant-configurable.
type StageService interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest, userID string) (*TransactionResponse, error)
	GetTransaction(ctx context.Context, id string) (*TransactionResponse, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]TransactionResponse, int64, error)
	ValidateTransition(ctx context.Context, transactionID string, targetStage int) (ValidationResult, error)
	CompleteStage(ctx context.Context, transactionID string, req CompleteStageRequest) (ProcessingResult, error)
	IsProtectedField(fieldName string) bool
}

type stageService struct {
	txRepo     repository.TransactionRepository
	configRepo repository.FieldConfigRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        *ws.Hub
	clock      Clock

	// Serializes completeStage per transaction id; the CAS in SaveProgress is
	// the backstop against writers on other instances.
	inFlight sync.Map // uuid.UUID -> *sync.Mutex
}

func NewStageService(
	txRepo repository.TransactionRepository,
	configRepo repository.FieldConfigRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	clock Clock,
) StageService {
	if clock == nil {
		clock = SystemClock
	}
	return &stageService{
		txRepo:     txRepo,
		configRepo: configRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
		clock:      clock,
	}
}

// --- Implementation ---

func (s *stageService) CreateTransaction(ctx context.Context, req CreateTransactionRequest, userID string) (*TransactionResponse, error) {
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	tx := model.ReceiptTransaction{
		TransactionCode: req.TransactionCode,
		TenantID:        tenantID,
		CurrentStage:    model.MinStage,
		Status:          model.TxStatusActive,
		Locked:          false,
		StageData:       model.StageDataMap{},
	}

	if tx.FacilityID, err = parseOptionalUUID(req.FacilityID, "facility id"); err != nil {
		return nil, err
	}
	if tx.VendorID, err = parseOptionalUUID(req.VendorID, "vendor id"); err != nil {
		return nil, err
	}
	if tx.PurchaseOrderID, err = parseOptionalUUID(req.PurchaseOrderID, "purchase order id"); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.txRepo.Create(txCtx, &tx); createErr != nil {
			return fmt.Errorf("failed to create transaction: %w", createErr)
		}
		s.writeAudit(txCtx, userID, &tenantID, model.ActionCreateTransaction, tx.ID.String(), tx.TransactionCode, map[string]interface{}{
			"transaction_code": tx.TransactionCode,
			"current_stage":    tx.CurrentStage,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toTransactionResponse(tx)
	return &resp, nil
}

func (s *stageService) GetTransaction(ctx context.Context, id string) (*TransactionResponse, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id: %w", err)
	}

	tx, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (s *stageService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]TransactionResponse, int64, error) {
	txs, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}

	res := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		res = append(res, toTransactionResponse(tx))
	}
	return res, total, nil
}

func (s *stageService) ValidateTransition(ctx context.Context, transactionID string, targetStage int) (ValidationResult, error) {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("invalid transaction id: %w", err)
	}

	tx, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		return ValidationResult{}, err
	}

	return s.validateLoaded(tx, targetStage), nil
}

// validateLoaded applies the sequencing and guardrail rules in a fixed order.
// The sequence check fires before the bounds check, even for a requested stage
// outside 1..7.
func (s *stageService) validateLoaded(tx *model.ReceiptTransaction, targetStage int) ValidationResult {
	invalid := func(msg string) ValidationResult {
		return ValidationResult{IsValid: false, Errors: []string{msg}, Warnings: []string{}}
	}

	if tx.Locked {
		return invalid("transaction is locked")
	}
	if tx.Status != model.TxStatusActive {
		return invalid(fmt.Sprintf("transaction is %s and cannot be modified", tx.Status))
	}
	if targetStage != tx.CurrentStage+1 {
		return invalid(fmt.Sprintf("invalid stage transition: current stage is %d, expected %d, requested %d",
			tx.CurrentStage, tx.CurrentStage+1, targetStage))
	}
	if targetStage < model.MinStage || targetStage > model.MaxStage {
		return invalid(fmt.Sprintf("stage %d is out of range [%d, %d]", targetStage, model.MinStage, model.MaxStage))
	}

	// Safety guardrails. Compiled in: no tenant configuration can bypass them.
	if targetStage == model.StageGoodsReceipt {
		if !stageApproved(tx.StageData, model.StageMaterialInspect) {
			return invalid("cannot generate goods-receipt without approved material inspection")
		}
	}
	if targetStage == model.StageGatePassExit {
		if !stageApproved(tx.StageData, model.StageGoodsReceipt) {
			return invalid("cannot generate exit pass without approved goods-receipt")
		}
	}

	return ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}
}

func stageApproved(data model.StageDataMap, stage int) bool {
	record, ok := data[stage]
	return ok && record.ValidationStatus == model.StageValidationApproved
}

func (s *stageService) CompleteStage(ctx context.Context, transactionID string, req CompleteStageRequest) (ProcessingResult, error) {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return ProcessingResult{}, fmt.Errorf("invalid transaction id: %w", err)
	}

	lock := s.lockFor(txID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		return ProcessingResult{}, err
	}

	failure := func(errs []string) ProcessingResult {
		return ProcessingResult{
			Success:       false,
			TransactionID: transactionID,
			Errors:        errs,
			Warnings:      []string{},
		}
	}

	if result := s.validateLoaded(tx, req.Stage); !result.IsValid {
		return failure(result.Errors), nil
	}

	fieldErrors, err := s.validateFieldValues(ctx, tx.TenantID, req.Stage, req.FieldValues)
	if err != nil {
		return ProcessingResult{}, err
	}
	if len(fieldErrors) > 0 {
		return failure(fieldErrors), nil
	}

	now := s.clock()
	completedAt := now
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	record := model.StageRecord{
		Stage:            req.Stage,
		FieldValues:      req.FieldValues,
		CompletedBy:      req.CompletedBy,
		CompletedAt:      completedAt,
		EvidenceIDs:      req.EvidenceIDs,
		ValidationStatus: defaultString(req.ValidationStatus, model.StageValidationPending),
		Notes:            req.Notes,
	}

	fromStage := tx.CurrentStage
	updated := *tx
	updated.StageData = cloneStageData(tx.StageData)
	updated.StageData[req.Stage] = record

	// Stage 7 is a fixed point: the transaction completes and locks.
	if req.Stage == model.MaxStage {
		updated.CurrentStage = model.MaxStage
		updated.Status = model.TxStatusCompleted
		updated.CompletedAt = &now
		updated.Locked = true
	} else {
		updated.CurrentStage = req.Stage + 1
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		saved, saveErr := s.txRepo.SaveProgress(txCtx, &updated, fromStage)
		if saveErr != nil {
			return fmt.Errorf("failed to persist stage completion: %w", saveErr)
		}
		if !saved {
			return errConcurrentAdvance
		}
		s.writeAudit(txCtx, req.CompletedBy, &tx.TenantID, model.ActionCompleteStage, tx.ID.String(), tx.TransactionCode, map[string]interface{}{
			"stage":      req.Stage,
			"stage_name": model.StageName(req.Stage),
			"old_stage":  fromStage,
			"new_stage":  updated.CurrentStage,
			"locked":     updated.Locked,
		})
		return nil
	})
	if err != nil {
		if err == errConcurrentAdvance {
			return failure([]string{"transaction was modified concurrently, reload and retry"}), nil
		}
		return ProcessingResult{}, err
	}

	if s.hub != nil {
		eventType := "stage_completed"
		if updated.Locked {
			eventType = "transaction_locked"
		}
		s.hub.PublishStageEvent(ws.StageEvent{
			Type:            eventType,
			TransactionID:   tx.ID.String(),
			TransactionCode: tx.TransactionCode,
			Stage:           req.Stage,
			StageName:       model.StageName(req.Stage),
			NewStage:        updated.CurrentStage,
			CompletedBy:     req.CompletedBy,
		})
	}

	newStage := updated.CurrentStage
	return ProcessingResult{
		Success:       true,
		TransactionID: transactionID,
		NewStage:      &newStage,
		Errors:        []string{},
		Warnings:      []string{},
	}, nil
}

var errConcurrentAdvance = fmt.Errorf("concurrent stage advance detected")

// validateFieldValues checks submitted values against the tenant's active
// schema for the stage. Errors accumulate; nothing short-circuits. Fields in
// the payload without a configuration are ignored.
func (s *stageService) validateFieldValues(ctx context.Context, tenantID uuid.UUID, stage int, values map[string]interface{}) ([]string, error) {
	cfgs, err := s.configRepo.ListActive(ctx, tenantID, &stage)
	if err != nil {
		return nil, fmt.Errorf("failed to load field configurations: %w", err)
	}

	now := s.clock()
	var errs []string
	for _, cfg := range cfgs {
		if !cfg.EffectiveAt(now) {
			continue
		}

		value, present := values[cfg.FieldName]
		if !present || validation.IsEmpty(value) {
			if cfg.Requirement == model.RequirementRequired {
				label := cfg.FieldLabel
				if label == "" {
					label = cfg.FieldName
				}
				errs = append(errs, fmt.Sprintf("%s is required", label))
			}
			continue
		}

		errs = append(errs, validation.Evaluate(cfg, value)...)
	}

	return errs, nil
}

func (s *stageService) IsProtectedField(fieldName string) bool {
	return model.IsProtectedField(fieldName)
}

func (s *stageService) lockFor(id uuid.UUID) *sync.Mutex {
	actual, _ := s.inFlight.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// --- Helpers ---

func cloneStageData(data model.StageDataMap) model.StageDataMap {
	cloned := make(model.StageDataMap, len(data)+1)
	for stage, record := range data {
		cloned[stage] = record
	}
	return cloned
}

func parseOptionalUUID(value, name string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &parsed, nil
}

func toTransactionResponse(tx model.ReceiptTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              tx.ID.String(),
		TransactionCode: tx.TransactionCode,
		TenantID:        tx.TenantID.String(),
		CurrentStage:    tx.CurrentStage,
		StageName:       model.StageName(tx.CurrentStage),
		Status:          tx.Status,
		Locked:          tx.Locked,
		StageData:       tx.StageData,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.FacilityID != nil {
		id := tx.FacilityID.String()
		resp.FacilityID = &id
	}
	if tx.VendorID != nil {
		id := tx.VendorID.String()
		resp.VendorID = &id
	}
	if tx.PurchaseOrderID != nil {
		id := tx.PurchaseOrderID.String()
		resp.PurchaseOrderID = &id
	}
	if tx.CompletedAt != nil {
		at := tx.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	return resp
}

func (s *stageService) writeAudit(ctx context.Context, userID string, tenantID *uuid.UUID, action, entityID, entityName string, details interface{}) {
	writeAuditEntry(ctx, s.auditRepo, userID, tenantID, action, entityID, entityName, details)
}
