package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/statistics")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager))
	{
		group.GET("", h.GetStatistics)
	}
}

// GetStatistics returns receipt transaction counts by status and stage
// @Summary      Receipt pipeline statistics
// @Description  Returns total transaction count, a breakdown by status and the distribution of active transactions across the seven stages
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id  query     string  true  "Tenant id"
// @Success      200        {object}  response.Response{data=service.StatisticsResponse}
// @Failure      400        {object}  response.Response
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "tenant_id is required"))
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
