package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backend/internal/apperror"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateFieldConfigRequest struct {
	TenantID          string                   `json:"tenant_id" binding:"required,uuid"`
	FacilityID        string                   `json:"facility_id" binding:"omitempty,uuid"`
	Stage             int                      `json:"stage" binding:"required,min=1,max=7"`
	FieldName         string                   `json:"field_name" binding:"required"`
	FieldLabel        string                   `json:"field_label" binding:"required"`
	FieldType         string                   `json:"field_type" binding:"required,oneof=TEXT NUMBER DATE BOOLEAN SELECT"`
	CaptureMode       string                   `json:"capture_mode" binding:"omitempty,oneof=MANUAL OCR CAMERA AUTO"`
	Requirement       string                   `json:"requirement" binding:"omitempty,oneof=REQUIRED OPTIONAL"`
	Editability       string                   `json:"editability" binding:"omitempty,oneof=EDITABLE READ_ONLY"`
	MinPhotoCount     int                      `json:"min_photo_count" binding:"min=0"`
	MaxPhotoCount     int                      `json:"max_photo_count" binding:"min=0"`
	DisplayOrder      int                      `json:"display_order"`
	HelpText          string                   `json:"help_text"`
	Placeholder       string                   `json:"placeholder"`
	DisplayConditions model.DisplayConditions  `json:"display_conditions"`
	ValidationRules   *model.ValidationRules   `json:"validation_rules"`
}

// UpdateFieldConfigRequest is a patch: only non-nil fields are applied on top
// of the current version when the next version is written.
type UpdateFieldConfigRequest struct {
	FieldName         *string                  `json:"field_name"`
	FieldLabel        *string                  `json:"field_label"`
	FieldType         *string                  `json:"field_type" binding:"omitempty,oneof=TEXT NUMBER DATE BOOLEAN SELECT"`
	CaptureMode       *string                  `json:"capture_mode" binding:"omitempty,oneof=MANUAL OCR CAMERA AUTO"`
	Requirement       *string                  `json:"requirement" binding:"omitempty,oneof=REQUIRED OPTIONAL"`
	Editability       *string                  `json:"editability" binding:"omitempty,oneof=EDITABLE READ_ONLY"`
	Stage             *int                     `json:"stage" binding:"omitempty,min=1,max=7"`
	MinPhotoCount     *int                     `json:"min_photo_count"`
	MaxPhotoCount     *int                     `json:"max_photo_count"`
	DisplayOrder      *int                     `json:"display_order"`
	HelpText          *string                  `json:"help_text"`
	Placeholder       *string                  `json:"placeholder"`
	DisplayConditions *model.DisplayConditions `json:"display_conditions"`
	ValidationRules   *model.ValidationRules   `json:"validation_rules"`
}

type FieldConfigResponse struct {
	ID                string                  `json:"id"`
	TenantID          string                  `json:"tenant_id"`
	FacilityID        *string                 `json:"facility_id"`
	Stage             int                     `json:"stage"`
	StageName         string                  `json:"stage_name"`
	FieldName         string                  `json:"field_name"`
	FieldLabel        string                  `json:"field_label"`
	FieldType         string                  `json:"field_type"`
	CaptureMode       string                  `json:"capture_mode"`
	Requirement       string                  `json:"requirement"`
	Editability       string                  `json:"editability"`
	MinPhotoCount     int                     `json:"min_photo_count"`
	MaxPhotoCount     int                     `json:"max_photo_count"`
	DisplayOrder      int                     `json:"display_order"`
	HelpText          string                  `json:"help_text,omitempty"`
	Placeholder       string                  `json:"placeholder,omitempty"`
	DisplayConditions model.DisplayConditions `json:"display_conditions,omitempty"`
	ValidationRules   *model.ValidationRules  `json:"validation_rules,omitempty"`
	Version           int                     `json:"version"`
	EffectiveFrom     string                  `json:"effective_from"`
	EffectiveTo       *string                 `json:"effective_to"`
	IsActive          bool                    `json:"is_active"`
}

// --- Interface ---

// FieldConfigService owns the versioned, scoped catalog of capturable fields
// per (tenant, optional facility, stage). Rows are append-only: updates close
// the current version and insert the next one, so history stays reconstructible.
type FieldConfigService interface {
	Create(ctx context.Context, req CreateFieldConfigRequest, userID string) (FieldConfigResponse, error)
	Update(ctx context.Context, id string, patch UpdateFieldConfigRequest, userID string) (FieldConfigResponse, error)
	MoveToStage(ctx context.Context, id string, newStage int, userID string) (FieldConfigResponse, error)
	ListActive(ctx context.Context, tenantID string, stage *int) ([]FieldConfigResponse, error)
	ListWithInheritance(ctx context.Context, tenantID string, facilityID *string, stage *int) ([]FieldConfigResponse, error)
	IsProtectedField(fieldName string) bool
}

type fieldConfigService struct {
	configRepo repository.FieldConfigRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	clock      Clock
}

func NewFieldConfigService(
	configRepo repository.FieldConfigRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	clock Clock,
) FieldConfigService {
	if clock == nil {
		clock = SystemClock
	}
	return &fieldConfigService{
		configRepo: configRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		clock:      clock,
	}
}

// --- Implementation ---

func (s *fieldConfigService) Create(ctx context.Context, req CreateFieldConfigRequest, userID string) (FieldConfigResponse, error) {
	fieldName := strings.ToLower(strings.TrimSpace(req.FieldName))
	if model.IsProtectedField(fieldName) {
		return FieldConfigResponse{}, &apperror.ProtectedFieldError{FieldName: fieldName}
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return FieldConfigResponse{}, fmt.Errorf("invalid tenant id: %w", err)
	}

	var facilityID *uuid.UUID
	if req.FacilityID != "" {
		parsed, parseErr := uuid.Parse(req.FacilityID)
		if parseErr != nil {
			return FieldConfigResponse{}, fmt.Errorf("invalid facility id: %w", parseErr)
		}
		facilityID = &parsed
	}

	// A facility-scoped row and a tenant-wide row for the same field/stage are
	// independent: the duplicate check matches the facility scope exactly.
	existing, err := s.configRepo.FindActiveByScope(ctx, tenantID, facilityID, req.Stage, fieldName)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return FieldConfigResponse{}, fmt.Errorf("failed to check existing configuration: %w", err)
	}
	if existing != nil {
		return FieldConfigResponse{}, &apperror.DuplicateConfigError{FieldName: fieldName, Stage: req.Stage}
	}

	now := s.clock()
	cfg := model.FieldConfiguration{
		TenantID:          tenantID,
		FacilityID:        facilityID,
		Stage:             req.Stage,
		FieldName:         fieldName,
		FieldLabel:        req.FieldLabel,
		FieldType:         req.FieldType,
		CaptureMode:       defaultString(req.CaptureMode, model.CaptureManual),
		Requirement:       defaultString(req.Requirement, model.RequirementOptional),
		Editability:       defaultString(req.Editability, model.EditabilityEditable),
		MinPhotoCount:     req.MinPhotoCount,
		MaxPhotoCount:     req.MaxPhotoCount,
		DisplayOrder:      req.DisplayOrder,
		HelpText:          req.HelpText,
		Placeholder:       req.Placeholder,
		DisplayConditions: req.DisplayConditions,
		Rules:             req.ValidationRules,
		Version:           1,
		EffectiveFrom:     now,
		EffectiveTo:       nil,
		IsActive:          true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.configRepo.Create(txCtx, &cfg); createErr != nil {
			return fmt.Errorf("failed to create field configuration: %w", createErr)
		}
		s.writeAudit(txCtx, userID, &tenantID, model.ActionCreateFieldConfig, cfg.ID.String(), fieldName, map[string]interface{}{
			"new": cfg,
		})
		return nil
	})
	if err != nil {
		return FieldConfigResponse{}, err
	}

	return toFieldConfigResponse(cfg), nil
}

func (s *fieldConfigService) Update(ctx context.Context, id string, patch UpdateFieldConfigRequest, userID string) (FieldConfigResponse, error) {
	configID, err := uuid.Parse(id)
	if err != nil {
		return FieldConfigResponse{}, fmt.Errorf("invalid configuration id: %w", err)
	}

	old, err := s.configRepo.FindByID(ctx, configID)
	if err != nil {
		return FieldConfigResponse{}, err
	}

	if patch.FieldName != nil {
		renamed := strings.ToLower(strings.TrimSpace(*patch.FieldName))
		if model.IsProtectedField(renamed) {
			return FieldConfigResponse{}, &apperror.ProtectedFieldError{FieldName: renamed}
		}
	}

	now := s.clock()
	next := mergeConfig(*old, patch)

	// A patch that changes the stage is a relocation and carries the same
	// rules as MoveToStage: pinned fields stay put, and the target scope key
	// must be free. A rename gets the collision check too.
	if next.Stage != old.Stage && model.IsPinnedField(old.Stage, old.FieldName) {
		return FieldConfigResponse{}, &apperror.PinnedFieldError{FieldName: old.FieldName, Stage: old.Stage}
	}
	if next.Stage != old.Stage || next.FieldName != old.FieldName {
		existing, scopeErr := s.configRepo.FindActiveByScope(ctx, old.TenantID, old.FacilityID, next.Stage, next.FieldName)
		if scopeErr != nil && !errors.Is(scopeErr, apperror.ErrNotFound) {
			return FieldConfigResponse{}, fmt.Errorf("failed to check target scope: %w", scopeErr)
		}
		if existing != nil {
			return FieldConfigResponse{}, &apperror.DuplicateConfigError{FieldName: next.FieldName, Stage: next.Stage}
		}
	}

	next.ID = uuid.Nil // new row, new id
	next.Version = old.Version + 1
	next.EffectiveFrom = now
	next.EffectiveTo = nil
	next.IsActive = true
	next.CreatedAt = time.Time{}
	next.UpdatedAt = time.Time{}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deactivateErr := s.configRepo.Deactivate(txCtx, old.ID, now); deactivateErr != nil {
			return fmt.Errorf("failed to deactivate configuration version %d: %w", old.Version, deactivateErr)
		}
		if createErr := s.configRepo.Create(txCtx, &next); createErr != nil {
			return fmt.Errorf("failed to insert configuration version %d: %w", next.Version, createErr)
		}
		s.writeAudit(txCtx, userID, &old.TenantID, model.ActionUpdateFieldConfig, next.ID.String(), next.FieldName, map[string]interface{}{
			"old": old,
			"new": next,
		})
		return nil
	})
	if err != nil {
		return FieldConfigResponse{}, err
	}

	return toFieldConfigResponse(next), nil
}

func (s *fieldConfigService) MoveToStage(ctx context.Context, id string, newStage int, userID string) (FieldConfigResponse, error) {
	configID, err := uuid.Parse(id)
	if err != nil {
		return FieldConfigResponse{}, fmt.Errorf("invalid configuration id: %w", err)
	}
	if newStage < model.MinStage || newStage > model.MaxStage {
		return FieldConfigResponse{}, fmt.Errorf("stage %d is out of range [%d, %d]", newStage, model.MinStage, model.MaxStage)
	}

	cfg, err := s.configRepo.FindByID(ctx, configID)
	if err != nil {
		return FieldConfigResponse{}, err
	}

	if model.IsPinnedField(cfg.Stage, cfg.FieldName) {
		return FieldConfigResponse{}, &apperror.PinnedFieldError{FieldName: cfg.FieldName, Stage: cfg.Stage}
	}

	// The collision check carries the source row's facility scope: a
	// tenant-wide field never collides with a facility-scoped one.
	existing, err := s.configRepo.FindActiveByScope(ctx, cfg.TenantID, cfg.FacilityID, newStage, cfg.FieldName)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return FieldConfigResponse{}, fmt.Errorf("failed to check target stage: %w", err)
	}
	if existing != nil {
		return FieldConfigResponse{}, &apperror.DuplicateConfigError{FieldName: cfg.FieldName, Stage: newStage}
	}

	resp, err := s.Update(ctx, id, UpdateFieldConfigRequest{Stage: &newStage}, userID)
	if err != nil {
		return FieldConfigResponse{}, err
	}

	s.writeAudit(ctx, userID, &cfg.TenantID, model.ActionMoveFieldConfig, resp.ID, cfg.FieldName, map[string]interface{}{
		"from_stage": cfg.Stage,
		"to_stage":   newStage,
	})

	return resp, nil
}

func (s *fieldConfigService) ListActive(ctx context.Context, tenantID string, stage *int) ([]FieldConfigResponse, error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	cfgs, err := s.configRepo.ListActive(ctx, tenant, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}

	return s.toResponses(s.filterEffective(cfgs)), nil
}

func (s *fieldConfigService) ListWithInheritance(ctx context.Context, tenantID string, facilityID *string, stage *int) ([]FieldConfigResponse, error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}

	tenantWide, err := s.configRepo.ListActiveScoped(ctx, tenant, nil, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant-wide configurations: %w", err)
	}
	merged := s.filterEffective(tenantWide)

	if facilityID != nil && *facilityID != "" {
		facility, parseErr := uuid.Parse(*facilityID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid facility id: %w", parseErr)
		}

		facilityScoped, listErr := s.configRepo.ListActiveScoped(ctx, tenant, &facility, stage)
		if listErr != nil {
			return nil, fmt.Errorf("failed to list facility configurations: %w", listErr)
		}

		// Facility entries override tenant-wide entries with the same
		// (stage, field name) key; everything else passes through.
		type scopeKey struct {
			stage int
			field string
		}
		byKey := make(map[scopeKey]int, len(merged))
		for i, cfg := range merged {
			byKey[scopeKey{cfg.Stage, cfg.FieldName}] = i
		}
		for _, cfg := range s.filterEffective(facilityScoped) {
			key := scopeKey{cfg.Stage, cfg.FieldName}
			if idx, ok := byKey[key]; ok {
				merged[idx] = cfg
			} else {
				byKey[key] = len(merged)
				merged = append(merged, cfg)
			}
		}

		sort.SliceStable(merged, func(i, j int) bool {
			if merged[i].Stage != merged[j].Stage {
				return merged[i].Stage < merged[j].Stage
			}
			return merged[i].DisplayOrder < merged[j].DisplayOrder
		})
	}

	return s.toResponses(merged), nil
}

func (s *fieldConfigService) IsProtectedField(fieldName string) bool {
	return model.IsProtectedField(fieldName)
}

// --- Helpers ---

// filterEffective applies the effective-window check with the injected clock.
// Rows with a null effective_to are open-ended and always pass the upper bound.
func (s *fieldConfigService) filterEffective(cfgs []model.FieldConfiguration) []model.FieldConfiguration {
	now := s.clock()
	out := cfgs[:0]
	for _, cfg := range cfgs {
		if cfg.EffectiveAt(now) {
			out = append(out, cfg)
		}
	}
	return out
}

func (s *fieldConfigService) toResponses(cfgs []model.FieldConfiguration) []FieldConfigResponse {
	res := make([]FieldConfigResponse, 0, len(cfgs))
	for _, cfg := range cfgs {
		res = append(res, toFieldConfigResponse(cfg))
	}
	return res
}

func mergeConfig(old model.FieldConfiguration, patch UpdateFieldConfigRequest) model.FieldConfiguration {
	next := old
	if patch.FieldName != nil {
		next.FieldName = strings.ToLower(strings.TrimSpace(*patch.FieldName))
	}
	if patch.FieldLabel != nil {
		next.FieldLabel = *patch.FieldLabel
	}
	if patch.FieldType != nil {
		next.FieldType = *patch.FieldType
	}
	if patch.CaptureMode != nil {
		next.CaptureMode = *patch.CaptureMode
	}
	if patch.Requirement != nil {
		next.Requirement = *patch.Requirement
	}
	if patch.Editability != nil {
		next.Editability = *patch.Editability
	}
	if patch.Stage != nil {
		next.Stage = *patch.Stage
	}
	if patch.MinPhotoCount != nil {
		next.MinPhotoCount = *patch.MinPhotoCount
	}
	if patch.MaxPhotoCount != nil {
		next.MaxPhotoCount = *patch.MaxPhotoCount
	}
	if patch.DisplayOrder != nil {
		next.DisplayOrder = *patch.DisplayOrder
	}
	if patch.HelpText != nil {
		next.HelpText = *patch.HelpText
	}
	if patch.Placeholder != nil {
		next.Placeholder = *patch.Placeholder
	}
	if patch.DisplayConditions != nil {
		next.DisplayConditions = *patch.DisplayConditions
	}
	if patch.ValidationRules != nil {
		next.Rules = patch.ValidationRules
	}
	return next
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func toFieldConfigResponse(cfg model.FieldConfiguration) FieldConfigResponse {
	resp := FieldConfigResponse{
		ID:                cfg.ID.String(),
		TenantID:          cfg.TenantID.String(),
		Stage:             cfg.Stage,
		StageName:         model.StageName(cfg.Stage),
		FieldName:         cfg.FieldName,
		FieldLabel:        cfg.FieldLabel,
		FieldType:         cfg.FieldType,
		CaptureMode:       cfg.CaptureMode,
		Requirement:       cfg.Requirement,
		Editability:       cfg.Editability,
		MinPhotoCount:     cfg.MinPhotoCount,
		MaxPhotoCount:     cfg.MaxPhotoCount,
		DisplayOrder:      cfg.DisplayOrder,
		HelpText:          cfg.HelpText,
		Placeholder:       cfg.Placeholder,
		DisplayConditions: cfg.DisplayConditions,
		ValidationRules:   cfg.Rules,
		Version:           cfg.Version,
		EffectiveFrom:     cfg.EffectiveFrom.Format(time.RFC3339),
		IsActive:          cfg.IsActive,
	}
	if cfg.FacilityID != nil {
		id := cfg.FacilityID.String()
		resp.FacilityID = &id
	}
	if cfg.EffectiveTo != nil {
		to := cfg.EffectiveTo.Format(time.RFC3339)
		resp.EffectiveTo = &to
	}
	return resp
}

func (s *fieldConfigService) writeAudit(ctx context.Context, userID string, tenantID *uuid.UUID, action, entityID, entityName string, details interface{}) {
	writeAuditEntry(ctx, s.auditRepo, userID, tenantID, action, entityID, entityName, details)
}
