package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/apperror"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	stageService service.StageService
}

func NewTransactionHandler(stageService service.StageService) *TransactionHandler {
	return &TransactionHandler{stageService: stageService}
}

func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/transactions")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleOperator))
	{
		group.POST("", h.CreateTransaction)
		group.GET("", h.ListTransactions)
		group.GET("/:id", h.GetTransaction)
		group.POST("/:id/validate-transition", h.ValidateTransition)
		group.POST("/:id/complete-stage", h.CompleteStage)
	}
}

// CreateTransaction opens a new receipt transaction at stage 1
// @Summary      Create receipt transaction
// @Description  Opens a new material receipt transaction at L1_VENDOR_DISPATCH
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTransactionRequest  true  "Transaction payload"
// @Success      201      {object}  response.Response{data=service.TransactionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.stageService.CreateTransaction(c.Request.Context(), req, middleware.UserIDFromContext(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// ListTransactions lists receipt transactions with filters
// @Summary      List receipt transactions
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id  query     string  false  "Tenant id"
// @Param        status     query     string  false  "Status filter"
// @Param        stage      query     int     false  "Current stage filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.TransactionFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	if tenant := c.Query("tenant_id"); tenant != "" {
		parsed, err := uuid.Parse(tenant)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid tenant_id"))
			return
		}
		filter.TenantID = &parsed
	}
	if stageStr := c.Query("stage"); stageStr != "" {
		stage, err := strconv.Atoi(stageStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid stage"))
			return
		}
		filter.Stage = &stage
	}

	txs, total, err := h.stageService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         params.Page,
		"limit":        params.Limit,
	}))
}

// GetTransaction returns one transaction with its stage data
// @Summary      Get receipt transaction
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transaction id"
// @Success      200  {object}  response.Response{data=service.TransactionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tx, err := h.stageService.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Transaction not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

type validateTransitionRequest struct {
	TargetStage int `json:"target_stage" binding:"required"`
}

// ValidateTransition dry-runs the sequencing and guardrail checks
// @Summary      Validate stage transition
// @Description  Checks whether the transaction can move to the target stage without mutating it
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Transaction id"
// @Param        payload  body      validateTransitionRequest   true  "Target stage"
// @Success      200      {object}  response.Response{data=service.ValidationResult}
// @Failure      404      {object}  response.Response
// @Router       /api/transactions/{id}/validate-transition [post]
func (h *TransactionHandler) ValidateTransition(c *gin.Context) {
	var req validateTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.stageService.ValidateTransition(c.Request.Context(), c.Param("id"), req.TargetStage)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Transaction not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CompleteStage submits captured data and advances the transaction
// @Summary      Complete a stage
// @Description  Validates the transition and the submitted field values, then advances the transaction by one stage. Completing stage 7 locks the transaction permanently.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Transaction id"
// @Param        payload  body      service.CompleteStageRequest  true  "Stage record"
// @Success      200      {object}  response.Response{data=service.ProcessingResult}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response{data=service.ProcessingResult}
// @Router       /api/transactions/{id}/complete-stage [post]
func (h *TransactionHandler) CompleteStage(c *gin.Context) {
	var req service.CompleteStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.stageService.CompleteStage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Transaction not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, response.Success(http.StatusUnprocessableEntity, result))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
