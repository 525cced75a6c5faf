package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/apperror"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigService(t *testing.T) (FieldConfigService, *memoryConfigRepo) {
	t.Helper()
	configRepo := &memoryConfigRepo{}
	return NewFieldConfigService(configRepo, &memoryAuditRepo{}, passthroughTxManager{}, fixedClock(testTime)), configRepo
}

func activeConfig(tenantID uuid.UUID, facilityID *uuid.UUID, stage int, fieldName string) model.FieldConfiguration {
	return model.FieldConfiguration{
		ID:            uuid.New(),
		TenantID:      tenantID,
		FacilityID:    facilityID,
		Stage:         stage,
		FieldName:     fieldName,
		FieldLabel:    fieldName,
		FieldType:     model.FieldTypeText,
		CaptureMode:   model.CaptureManual,
		Requirement:   model.RequirementOptional,
		Editability:   model.EditabilityEditable,
		Version:       1,
		EffectiveFrom: testTime.Add(-24 * time.Hour),
		IsActive:      true,
	}
}

func TestCreateConfigStartsAtVersionOne(t *testing.T) {
	svc, _ := newTestConfigService(t)

	cfg, err := svc.Create(context.Background(), CreateFieldConfigRequest{
		TenantID:   uuid.NewString(),
		Stage:      2,
		FieldName:  "  Vehicle_Number ",
		FieldLabel: "Vehicle Number",
		FieldType:  model.FieldTypeText,
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "vehicle_number", cfg.FieldName)
	assert.Equal(t, model.CaptureManual, cfg.CaptureMode)
	assert.Equal(t, model.RequirementOptional, cfg.Requirement)
	assert.True(t, cfg.IsActive)
	assert.Nil(t, cfg.EffectiveTo)
}

func TestCreateConfigRejectsProtectedEvidenceFields(t *testing.T) {
	svc, _ := newTestConfigService(t)

	for _, name := range []string{"photos", "Signature", "GPS_LOCATION", " timestamp "} {
		_, err := svc.Create(context.Background(), CreateFieldConfigRequest{
			TenantID:   uuid.NewString(),
			Stage:      2,
			FieldName:  name,
			FieldLabel: name,
			FieldType:  model.FieldTypeText,
		}, "admin-1")

		var protected *apperror.ProtectedFieldError
		require.ErrorAs(t, err, &protected, "field %q", name)
	}
}

func TestCreateConfigRejectsDuplicateScope(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	configRepo.add(activeConfig(tenantID, nil, 2, "vehicle_number"))

	_, err := svc.Create(context.Background(), CreateFieldConfigRequest{
		TenantID:   tenantID.String(),
		Stage:      2,
		FieldName:  "vehicle_number",
		FieldLabel: "Vehicle Number",
		FieldType:  model.FieldTypeText,
	}, "admin-1")

	var duplicate *apperror.DuplicateConfigError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "vehicle_number", duplicate.FieldName)
	assert.Equal(t, 2, duplicate.Stage)
}

func TestCreateConfigFacilityScopeIsIndependent(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	configRepo.add(activeConfig(tenantID, nil, 2, "vehicle_number"))

	// Same field and stage under a facility scope is a different slot.
	cfg, err := svc.Create(context.Background(), CreateFieldConfigRequest{
		TenantID:   tenantID.String(),
		FacilityID: uuid.NewString(),
		Stage:      2,
		FieldName:  "vehicle_number",
		FieldLabel: "Vehicle Number",
		FieldType:  model.FieldTypeText,
	}, "admin-1")
	require.NoError(t, err)
	assert.NotNil(t, cfg.FacilityID)
}

func TestUpdateConfigAppendsNewVersion(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	original := activeConfig(tenantID, nil, 2, "vehicle_number")
	original.Version = 3
	id := configRepo.add(original)

	newLabel := "Truck Number"
	updated, err := svc.Update(context.Background(), id.String(), UpdateFieldConfigRequest{
		FieldLabel: &newLabel,
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 4, updated.Version)
	assert.Equal(t, "Truck Number", updated.FieldLabel)
	assert.Equal(t, "vehicle_number", updated.FieldName)
	assert.True(t, updated.IsActive)
	assert.Nil(t, updated.EffectiveTo)
	assert.NotEqual(t, id.String(), updated.ID)

	// The old version is closed, not rewritten.
	old, err := configRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	require.NotNil(t, old.EffectiveTo)
	assert.Equal(t, testTime, *old.EffectiveTo)
	assert.Equal(t, 3, old.Version)
	assert.Equal(t, original.FieldLabel, old.FieldLabel)
}

func TestUpdateConfigRejectsRenameToProtected(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	id := configRepo.add(activeConfig(uuid.New(), nil, 2, "vehicle_number"))

	renamed := "documents"
	_, err := svc.Update(context.Background(), id.String(), UpdateFieldConfigRequest{
		FieldName: &renamed,
	}, "admin-1")

	var protected *apperror.ProtectedFieldError
	require.ErrorAs(t, err, &protected)
}

func TestUpdateConfigRejectsStageChangeForPinnedField(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	id := configRepo.add(activeConfig(uuid.New(), nil, 3, "gross_weight"))

	// A stage patch is a relocation and carries the same pin rule as a move.
	target := 5
	_, err := svc.Update(context.Background(), id.String(), UpdateFieldConfigRequest{
		Stage: &target,
	}, "admin-1")

	var pinned *apperror.PinnedFieldError
	require.ErrorAs(t, err, &pinned)
	assert.Equal(t, "gross_weight", pinned.FieldName)
	assert.Equal(t, 3, pinned.Stage)

	cfg, findErr := configRepo.FindByID(context.Background(), id)
	require.NoError(t, findErr)
	assert.True(t, cfg.IsActive)
	assert.Equal(t, 3, cfg.Stage)
	assert.Equal(t, 1, cfg.Version)
}

func TestUpdateConfigRejectsStageChangeIntoOccupiedScope(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	id := configRepo.add(activeConfig(tenantID, nil, 2, "seal_number"))
	occupantID := configRepo.add(activeConfig(tenantID, nil, 3, "seal_number"))

	target := 3
	_, err := svc.Update(context.Background(), id.String(), UpdateFieldConfigRequest{
		Stage: &target,
	}, "admin-1")

	var duplicate *apperror.DuplicateConfigError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "seal_number", duplicate.FieldName)
	assert.Equal(t, 3, duplicate.Stage)

	// Both rows keep their scopes, no second active row at stage 3.
	moved, findErr := configRepo.FindByID(context.Background(), id)
	require.NoError(t, findErr)
	assert.True(t, moved.IsActive)
	assert.Equal(t, 2, moved.Stage)

	occupant, findErr := configRepo.FindByID(context.Background(), occupantID)
	require.NoError(t, findErr)
	assert.True(t, occupant.IsActive)
	assert.Equal(t, 1, occupant.Version)
}

func TestUpdateConfigRejectsRenameIntoOccupiedScope(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	id := configRepo.add(activeConfig(tenantID, nil, 2, "seal_number"))
	configRepo.add(activeConfig(tenantID, nil, 2, "trailer_number"))

	renamed := "trailer_number"
	_, err := svc.Update(context.Background(), id.String(), UpdateFieldConfigRequest{
		FieldName: &renamed,
	}, "admin-1")

	var duplicate *apperror.DuplicateConfigError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "trailer_number", duplicate.FieldName)
}

func TestUpdateConfigUnknownID(t *testing.T) {
	svc, _ := newTestConfigService(t)

	label := "x"
	_, err := svc.Update(context.Background(), uuid.NewString(), UpdateFieldConfigRequest{FieldLabel: &label}, "admin-1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMoveConfigRelocatesField(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	id := configRepo.add(activeConfig(tenantID, nil, 2, "seal_number"))

	moved, err := svc.MoveToStage(context.Background(), id.String(), 3, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 3, moved.Stage)
	assert.Equal(t, 2, moved.Version)
	assert.Equal(t, "seal_number", moved.FieldName)

	old, err := configRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Equal(t, 2, old.Stage)
}

func TestMoveConfigRejectsPinnedField(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	id := configRepo.add(activeConfig(uuid.New(), nil, 3, "gross_weight"))

	_, err := svc.MoveToStage(context.Background(), id.String(), 4, "admin-1")

	var pinned *apperror.PinnedFieldError
	require.ErrorAs(t, err, &pinned)
	assert.Equal(t, "gross_weight", pinned.FieldName)
	assert.Equal(t, 3, pinned.Stage)

	// The pinned row is untouched.
	cfg, findErr := configRepo.FindByID(context.Background(), id)
	require.NoError(t, findErr)
	assert.True(t, cfg.IsActive)
	assert.Equal(t, 3, cfg.Stage)
}

func TestMoveConfigRejectsTargetCollision(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	id := configRepo.add(activeConfig(tenantID, nil, 2, "seal_number"))
	configRepo.add(activeConfig(tenantID, nil, 3, "seal_number"))

	_, err := svc.MoveToStage(context.Background(), id.String(), 3, "admin-1")

	var duplicate *apperror.DuplicateConfigError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, 3, duplicate.Stage)
}

func TestMoveConfigRejectsOutOfRangeStage(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	id := configRepo.add(activeConfig(uuid.New(), nil, 2, "seal_number"))

	_, err := svc.MoveToStage(context.Background(), id.String(), 8, "admin-1")
	assert.Error(t, err)
}

func TestListActiveFiltersEffectiveWindow(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()

	current := activeConfig(tenantID, nil, 2, "vehicle_number")
	configRepo.add(current)

	future := activeConfig(tenantID, nil, 2, "driver_name")
	future.EffectiveFrom = testTime.Add(time.Hour)
	configRepo.add(future)

	// Open-ended window: null effective_to must pass the upper-bound check.
	openEnded := activeConfig(tenantID, nil, 2, "seal_number")
	openEnded.EffectiveTo = nil
	configRepo.add(openEnded)

	closing := activeConfig(tenantID, nil, 2, "remarks")
	to := testTime.Add(-time.Minute)
	closing.EffectiveTo = &to
	configRepo.add(closing)

	cfgs, err := svc.ListActive(context.Background(), tenantID.String(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		names = append(names, cfg.FieldName)
	}
	assert.ElementsMatch(t, []string{"vehicle_number", "seal_number"}, names)
}

func TestListWithInheritanceOverlaysFacilityRows(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	facilityID := uuid.New()
	otherFacility := uuid.New()

	tenantWide := activeConfig(tenantID, nil, 2, "vehicle_number")
	tenantWide.Requirement = model.RequirementOptional
	configRepo.add(tenantWide)
	configRepo.add(activeConfig(tenantID, nil, 2, "driver_name"))

	override := activeConfig(tenantID, &facilityID, 2, "vehicle_number")
	override.Requirement = model.RequirementRequired
	configRepo.add(override)
	configRepo.add(activeConfig(tenantID, &facilityID, 3, "dock_number"))

	// Rows for other facilities never leak into the overlay.
	configRepo.add(activeConfig(tenantID, &otherFacility, 2, "forklift_id"))

	facility := facilityID.String()
	cfgs, err := svc.ListWithInheritance(context.Background(), tenantID.String(), &facility, nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	byName := map[string]FieldConfigResponse{}
	for _, cfg := range cfgs {
		byName[cfg.FieldName] = cfg
	}

	assert.Equal(t, model.RequirementRequired, byName["vehicle_number"].Requirement)
	require.NotNil(t, byName["vehicle_number"].FacilityID)
	assert.Nil(t, byName["driver_name"].FacilityID)
	assert.Equal(t, 3, byName["dock_number"].Stage)
	assert.NotContains(t, byName, "forklift_id")
}

func TestListWithInheritanceSortsByStageAndDisplayOrder(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	facilityID := uuid.New()

	addAt := func(facility *uuid.UUID, stage int, name string, order int) {
		cfg := activeConfig(tenantID, facility, stage, name)
		cfg.DisplayOrder = order
		configRepo.add(cfg)
	}

	// Interleave display orders across scopes so the merged result only
	// comes out ordered if it is re-sorted after the overlay.
	addAt(nil, 3, "dock_number", 1)
	addAt(nil, 2, "vehicle_number", 2)
	addAt(nil, 2, "driver_name", 3)
	addAt(&facilityID, 2, "seal_number", 1)
	// Override pushes vehicle_number behind driver_name within stage 2.
	addAt(&facilityID, 2, "vehicle_number", 5)

	facility := facilityID.String()
	cfgs, err := svc.ListWithInheritance(context.Background(), tenantID.String(), &facility, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		names = append(names, cfg.FieldName)
	}
	assert.Equal(t, []string{"seal_number", "driver_name", "vehicle_number", "dock_number"}, names)
}

func TestListWithInheritanceTenantOnly(t *testing.T) {
	svc, configRepo := newTestConfigService(t)
	tenantID := uuid.New()
	facilityID := uuid.New()

	configRepo.add(activeConfig(tenantID, nil, 2, "vehicle_number"))
	configRepo.add(activeConfig(tenantID, &facilityID, 2, "dock_number"))

	cfgs, err := svc.ListWithInheritance(context.Background(), tenantID.String(), nil, nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "vehicle_number", cfgs[0].FieldName)
}

func TestIsProtectedField(t *testing.T) {
	svc, _ := newTestConfigService(t)

	assert.True(t, svc.IsProtectedField("photos"))
	assert.True(t, svc.IsProtectedField("Captured_At"))
	assert.False(t, svc.IsProtectedField("vehicle_number"))
}
