package service

import (
	"context"
	"fmt"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageCount struct {
	Stage     int    `json:"stage"`
	StageName string `json:"stage_name"`
	Count     int64  `json:"count"`
}

type StatisticsResponse struct {
	TotalTransactions int64            `json:"total_transactions"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByStage           []StageCount     `json:"by_stage"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, tenantID string) (StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates the tenant's receipt transactions by status and by
// current stage for dashboard views.
func (s *statisticsService) GetStatistics(ctx context.Context, tenantID string) (StatisticsResponse, error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return StatisticsResponse{}, fmt.Errorf("invalid tenant id: %w", err)
	}

	response := StatisticsResponse{
		ByStatus: make(map[string]int64),
		ByStage:  make([]StageCount, 0, model.MaxStage),
	}

	if err := s.db.WithContext(ctx).
		Model(&model.ReceiptTransaction{}).
		Where("tenant_id = ?", tenant).
		Count(&response.TotalTransactions).Error; err != nil {
		return StatisticsResponse{}, fmt.Errorf("failed to count transactions: %w", err)
	}

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&model.ReceiptTransaction{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ?", tenant).
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return StatisticsResponse{}, fmt.Errorf("failed to group by status: %w", err)
	}
	for _, row := range statusRows {
		response.ByStatus[row.Status] = row.Count
	}

	var stageRows []struct {
		CurrentStage int
		Count        int64
	}
	if err := s.db.WithContext(ctx).
		Model(&model.ReceiptTransaction{}).
		Select("current_stage, COUNT(*) as count").
		Where("tenant_id = ? AND status = ?", tenant, model.TxStatusActive).
		Group("current_stage").
		Order("current_stage asc").
		Scan(&stageRows).Error; err != nil {
		return StatisticsResponse{}, fmt.Errorf("failed to group by stage: %w", err)
	}
	for _, row := range stageRows {
		response.ByStage = append(response.ByStage, StageCount{
			Stage:     row.CurrentStage,
			StageName: model.StageName(row.CurrentStage),
			Count:     row.Count,
		})
	}

	return response, nil
}
