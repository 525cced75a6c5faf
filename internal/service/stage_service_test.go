package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestStageService(t *testing.T) (StageService, *memoryTransactionRepo, *memoryConfigRepo) {
	t.Helper()
	txRepo := newMemoryTransactionRepo()
	configRepo := &memoryConfigRepo{}
	return NewStageService(txRepo, configRepo, &memoryAuditRepo{}, passthroughTxManager{}, nil, fixedClock(testTime)), txRepo, configRepo
}

func seedTransaction(txRepo *memoryTransactionRepo, stage int, stageData model.StageDataMap) model.ReceiptTransaction {
	if stageData == nil {
		stageData = model.StageDataMap{}
	}
	tx := model.ReceiptTransaction{
		ID:              uuid.New(),
		TransactionCode: "TRX-001",
		TenantID:        uuid.New(),
		CurrentStage:    stage,
		Status:          model.TxStatusActive,
		StageData:       stageData,
		CreatedAt:       testTime,
	}
	txRepo.put(tx)
	return tx
}

func approvedRecord(stage int) model.StageRecord {
	return model.StageRecord{
		Stage:            stage,
		CompletedBy:      "op-1",
		CompletedAt:      testTime,
		ValidationStatus: model.StageValidationApproved,
	}
}

func TestCreateTransactionStartsAtVendorDispatch(t *testing.T) {
	svc, _, _ := newTestStageService(t)

	tx, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		TransactionCode: "TRX-100",
		TenantID:        uuid.NewString(),
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, model.StageVendorDispatch, tx.CurrentStage)
	assert.Equal(t, "L1_VENDOR_DISPATCH", tx.StageName)
	assert.Equal(t, model.TxStatusActive, tx.Status)
	assert.False(t, tx.Locked)
	assert.Empty(t, tx.StageData)
}

func TestValidateTransitionSequence(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)
	tx := seedTransaction(txRepo, 3, model.StageDataMap{
		1: approvedRecord(1), 2: approvedRecord(2),
	})

	t.Run("next stage is valid", func(t *testing.T) {
		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 4)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Empty(t, result.Errors)
	})

	t.Run("skipping a stage is rejected", func(t *testing.T) {
		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 5)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, []string{"invalid stage transition: current stage is 3, expected 4, requested 5"}, result.Errors)
	})

	t.Run("moving backwards is rejected", func(t *testing.T) {
		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 2)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
	})

	t.Run("sequence error wins over range error", func(t *testing.T) {
		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 9)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, []string{"invalid stage transition: current stage is 3, expected 4, requested 9"}, result.Errors)
	})
}

func TestValidateTransitionLockedAndTerminal(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)

	locked := seedTransaction(txRepo, 7, nil)
	locked.Locked = true
	locked.Status = model.TxStatusCompleted
	txRepo.put(locked)

	result, err := svc.ValidateTransition(context.Background(), locked.ID.String(), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction is locked"}, result.Errors)

	cancelled := seedTransaction(txRepo, 2, nil)
	cancelled.Status = model.TxStatusCancelled
	txRepo.put(cancelled)

	result, err = svc.ValidateTransition(context.Background(), cancelled.ID.String(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction is CANCELLED and cannot be modified"}, result.Errors)
}

func TestGoodsReceiptGuardrail(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)

	t.Run("blocked when inspection is pending", func(t *testing.T) {
		tx := seedTransaction(txRepo, 5, model.StageDataMap{
			4: {Stage: 4, ValidationStatus: model.StageValidationPending},
			5: approvedRecord(5),
		})

		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 6)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, []string{"cannot generate goods-receipt without approved material inspection"}, result.Errors)
	})

	t.Run("blocked when inspection record is absent", func(t *testing.T) {
		tx := seedTransaction(txRepo, 5, model.StageDataMap{5: approvedRecord(5)})

		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 6)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, []string{"cannot generate goods-receipt without approved material inspection"}, result.Errors)
	})

	t.Run("passes with approved inspection", func(t *testing.T) {
		tx := seedTransaction(txRepo, 5, model.StageDataMap{
			4: approvedRecord(4),
			5: approvedRecord(5),
		})

		result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 6)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})
}

func TestExitPassGuardrail(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)

	tx := seedTransaction(txRepo, 6, model.StageDataMap{
		4: approvedRecord(4),
		6: {Stage: 6, ValidationStatus: model.StageValidationRejected},
	})

	result, err := svc.ValidateTransition(context.Background(), tx.ID.String(), 7)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"cannot generate exit pass without approved goods-receipt"}, result.Errors)

	tx.StageData[6] = approvedRecord(6)
	txRepo.put(tx)

	result, err = svc.ValidateTransition(context.Background(), tx.ID.String(), 7)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestCompleteStageAdvancesAndRecords(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)
	tx := seedTransaction(txRepo, 1, nil)

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       2,
		FieldValues: map[string]interface{}{"vehicle_number": "KA-01-1234"},
		CompletedBy: "op-1",
	})
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)
	require.NotNil(t, result.NewStage)
	assert.Equal(t, 3, *result.NewStage)

	stored := txRepo.get(tx.ID)
	assert.Equal(t, 3, stored.CurrentStage)
	assert.Equal(t, model.TxStatusActive, stored.Status)

	record := stored.StageData[2]
	assert.Equal(t, "op-1", record.CompletedBy)
	assert.Equal(t, testTime, record.CompletedAt)
	assert.Equal(t, model.StageValidationPending, record.ValidationStatus)
	assert.Equal(t, "KA-01-1234", record.FieldValues["vehicle_number"])
}

func TestCompleteStageRequiredFieldErrorsAccumulate(t *testing.T) {
	svc, txRepo, configRepo := newTestStageService(t)
	tx := seedTransaction(txRepo, 1, nil)

	configRepo.add(model.FieldConfiguration{
		TenantID: tx.TenantID, Stage: 2,
		FieldName: "vehicle_number", FieldLabel: "Vehicle Number",
		FieldType: model.FieldTypeText, Requirement: model.RequirementRequired,
		Version: 1, EffectiveFrom: testTime.Add(-time.Hour), IsActive: true,
	})
	configRepo.add(model.FieldConfiguration{
		TenantID: tx.TenantID, Stage: 2,
		FieldName: "driver_name", FieldLabel: "Driver Name",
		FieldType: model.FieldTypeText, Requirement: model.RequirementRequired,
		Version: 1, EffectiveFrom: testTime.Add(-time.Hour), IsActive: true,
	})
	configRepo.add(model.FieldConfiguration{
		TenantID: tx.TenantID, Stage: 2,
		FieldName: "remarks", FieldLabel: "Remarks",
		FieldType: model.FieldTypeText, Requirement: model.RequirementOptional,
		Version: 1, EffectiveFrom: testTime.Add(-time.Hour), IsActive: true,
	})

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       2,
		FieldValues: map[string]interface{}{"vehicle_number": "   "},
		CompletedBy: "op-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ElementsMatch(t, []string{"Vehicle Number is required", "Driver Name is required"}, result.Errors)

	// Nothing was written.
	stored := txRepo.get(tx.ID)
	assert.Equal(t, 1, stored.CurrentStage)
	assert.Empty(t, stored.StageData)
	assert.Equal(t, 0, txRepo.saveCalls)
}

func TestCompleteStageRuleViolations(t *testing.T) {
	svc, txRepo, configRepo := newTestStageService(t)
	tx := seedTransaction(txRepo, 2, nil)

	min := 100.0
	configRepo.add(model.FieldConfiguration{
		TenantID: tx.TenantID, Stage: 3,
		FieldName: "gross_weight", FieldLabel: "Gross Weight",
		FieldType: model.FieldTypeNumber, Requirement: model.RequirementRequired,
		Rules:   &model.ValidationRules{MinValue: &min},
		Version: 1, EffectiveFrom: testTime.Add(-time.Hour), IsActive: true,
	})

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       3,
		FieldValues: map[string]interface{}{"gross_weight": 42.5},
		CompletedBy: "op-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"Gross Weight must be at least 100"}, result.Errors)
	assert.Equal(t, 2, txRepo.get(tx.ID).CurrentStage)
}

func TestCompleteFinalStageLocksTransaction(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)
	tx := seedTransaction(txRepo, 6, model.StageDataMap{
		4: approvedRecord(4),
		6: approvedRecord(6),
	})

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       7,
		FieldValues: map[string]interface{}{"gate_pass_number": "GP-9"},
		CompletedBy: "guard-1",
	})
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 7, *result.NewStage)

	stored := txRepo.get(tx.ID)
	assert.Equal(t, 7, stored.CurrentStage)
	assert.Equal(t, model.TxStatusCompleted, stored.Status)
	assert.True(t, stored.Locked)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, testTime, *stored.CompletedAt)

	// A locked transaction refuses any further advance.
	again, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       8,
		CompletedBy: "guard-1",
	})
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, []string{"transaction is locked"}, again.Errors)
}

func TestCompleteStageGuardrailBlocksWrite(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)
	tx := seedTransaction(txRepo, 5, model.StageDataMap{
		4: {Stage: 4, ValidationStatus: model.StageValidationPending},
	})

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       6,
		FieldValues: map[string]interface{}{"grn_number": "GRN-1"},
		CompletedBy: "op-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"cannot generate goods-receipt without approved material inspection"}, result.Errors)
	assert.Equal(t, 5, txRepo.get(tx.ID).CurrentStage)
}

func TestCompleteStageLostCompareAndSwap(t *testing.T) {
	svc, txRepo, _ := newTestStageService(t)
	tx := seedTransaction(txRepo, 1, nil)
	txRepo.rejectSave = true

	result, err := svc.CompleteStage(context.Background(), tx.ID.String(), CompleteStageRequest{
		Stage:       2,
		CompletedBy: "op-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"transaction was modified concurrently, reload and retry"}, result.Errors)
}

func TestCompleteStageNotFound(t *testing.T) {
	svc, _, _ := newTestStageService(t)

	_, err := svc.CompleteStage(context.Background(), uuid.NewString(), CompleteStageRequest{
		Stage:       2,
		CompletedBy: "op-1",
	})
	assert.Error(t, err)
}
