package handler

import (
	"errors"
	"net/http"

	"backend/internal/apperror"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
}

func NewPurchaseOrderHandler(poService service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/purchase-orders")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager))
	{
		group.POST("", h.CreatePurchaseOrder)
		group.PATCH("/:id/status", h.UpdateStatus)
	}

	readGroup := router.Group("/api/purchase-orders")
	readGroup.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleOperator))
	{
		readGroup.GET("", h.ListPurchaseOrders)
		readGroup.GET("/:id", h.GetPurchaseOrder)
	}
}

// CreatePurchaseOrder registers a purchase order with its line items
// @Summary      Create purchase order
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePurchaseOrderRequest  true  "Purchase order payload"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	po, err := h.poService.CreatePurchaseOrder(c.Request.Context(), req, middleware.UserIDFromContext(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, po))
}

// GetPurchaseOrder returns one purchase order with its items
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase order id"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.poService.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase order not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// ListPurchaseOrders lists purchase orders for a tenant
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id  query     string  true   "Tenant id"
// @Param        status     query     string  false  "Status filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "tenant_id is required"))
		return
	}

	params := pagination.Parse(c)
	pos, total, err := h.poService.ListPurchaseOrders(c.Request.Context(), tenantID, c.Query("status"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"purchase_orders": pos,
		"total":           total,
		"page":            params.Page,
		"limit":           params.Limit,
	}))
}

type updatePOStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=OPEN RECEIVING CLOSED CANCELLED"`
}

// UpdateStatus moves a purchase order through its lifecycle
// @Summary      Update purchase order status
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Purchase order id"
// @Param        payload  body      updatePOStatusRequest  true  "New status"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/purchase-orders/{id}/status [patch]
func (h *PurchaseOrderHandler) UpdateStatus(c *gin.Context) {
	var req updatePOStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.poService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase order not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Status updated"))
}
