package service

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// writeAuditEntry records a mutation with its old/new values. Best-effort:
// a failed audit write never fails the operation that produced it.
func writeAuditEntry(ctx context.Context, auditRepo repository.AuditRepository, userID string, tenantID *uuid.UUID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		TenantID:   tenantID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			entry.UserID = &parsed
		}
	}

	_ = auditRepo.Log(ctx, &entry)
}

type AuditLogResponse struct {
	ID         string  `json:"id"`
	TenantID   *string `json:"tenant_id"`
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	Action     string  `json:"action"`
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	Details    string  `json:"details"`
	CreatedAt  string  `json:"created_at"`
}

type AuditQuery struct {
	TenantID string
	Action   string
	EntityID string
	Page     int
	Limit    int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, query AuditQuery) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) GetAuditLogs(ctx context.Context, query AuditQuery) ([]AuditLogResponse, int64, error) {
	filter := repository.AuditFilter{
		Action:   query.Action,
		EntityID: query.EntityID,
		Page:     query.Page,
		Limit:    query.Limit,
	}

	if query.TenantID != "" {
		tenant, err := uuid.Parse(query.TenantID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid tenant id: %w", err)
		}
		filter.TenantID = &tenant
	}

	logs, total, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		entry := AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if l.TenantID != nil {
			tenant := l.TenantID.String()
			entry.TenantID = &tenant
		}
		res = append(res, entry)
	}

	return res, total, nil
}
