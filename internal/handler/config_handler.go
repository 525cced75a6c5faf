package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/apperror"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	configService service.FieldConfigService
}

func NewConfigHandler(configService service.FieldConfigService) *ConfigHandler {
	return &ConfigHandler{configService: configService}
}

func (h *ConfigHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/field-configs")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager))
	{
		group.POST("", h.CreateConfig)
		group.PATCH("/:id", h.UpdateConfig)
		group.POST("/:id/move", h.MoveConfig)
	}

	readGroup := router.Group("/api/field-configs")
	readGroup.Use(middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleOperator))
	{
		readGroup.GET("", h.ListConfigs)
		readGroup.GET("/effective", h.ListEffectiveConfigs)
		readGroup.GET("/protected/:name", h.CheckProtectedField)
	}
}

func configErrorStatus(err error) (int, string) {
	var protected *apperror.ProtectedFieldError
	var pinned *apperror.PinnedFieldError
	var duplicate *apperror.DuplicateConfigError

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "Field configuration not found"
	case errors.As(err, &duplicate):
		return http.StatusConflict, err.Error()
	case errors.As(err, &protected), errors.As(err, &pinned):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusBadRequest, err.Error()
	}
}

// CreateConfig creates version 1 of a field configuration
// @Summary      Create field configuration
// @Tags         field-configs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateFieldConfigRequest  true  "Configuration payload"
// @Success      201      {object}  response.Response{data=service.FieldConfigResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/field-configs [post]
func (h *ConfigHandler) CreateConfig(c *gin.Context) {
	var req service.CreateFieldConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cfg, err := h.configService.Create(c.Request.Context(), req, middleware.UserIDFromContext(c))
	if err != nil {
		status, msg := configErrorStatus(err)
		c.JSON(status, response.Error(status, msg))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, cfg))
}

// UpdateConfig appends a new version of a field configuration
// @Summary      Update field configuration
// @Description  Writes a new version with version+1 and retires the previous one. Prior versions are never modified.
// @Tags         field-configs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true  "Configuration id"
// @Param        payload  body      service.UpdateFieldConfigRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.FieldConfigResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/field-configs/{id} [patch]
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateFieldConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cfg, err := h.configService.Update(c.Request.Context(), c.Param("id"), req, middleware.UserIDFromContext(c))
	if err != nil {
		status, msg := configErrorStatus(err)
		c.JSON(status, response.Error(status, msg))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfg))
}

type moveConfigRequest struct {
	Stage int `json:"stage" binding:"required"`
}

// MoveConfig relocates a field configuration to a different stage
// @Summary      Move field configuration to another stage
// @Description  Fails for fields pinned to their stage and for moves that would collide with an active configuration at the target stage.
// @Tags         field-configs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Configuration id"
// @Param        payload  body      moveConfigRequest  true  "Target stage"
// @Success      200      {object}  response.Response{data=service.FieldConfigResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/field-configs/{id}/move [post]
func (h *ConfigHandler) MoveConfig(c *gin.Context) {
	var req moveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cfg, err := h.configService.MoveToStage(c.Request.Context(), c.Param("id"), req.Stage, middleware.UserIDFromContext(c))
	if err != nil {
		status, msg := configErrorStatus(err)
		c.JSON(status, response.Error(status, msg))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfg))
}

// ListConfigs lists active tenant-level field configurations
// @Summary      List field configurations
// @Tags         field-configs
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id  query     string  true   "Tenant id"
// @Param        stage      query     int     false  "Stage filter"
// @Success      200        {object}  response.Response{data=[]service.FieldConfigResponse}
// @Router       /api/field-configs [get]
func (h *ConfigHandler) ListConfigs(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "tenant_id is required"))
		return
	}

	stage, ok := parseStageQuery(c)
	if !ok {
		return
	}

	cfgs, err := h.configService.ListActive(c.Request.Context(), tenantID, stage)
	if err != nil {
		status, msg := configErrorStatus(err)
		c.JSON(status, response.Error(status, msg))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfgs))
}

// ListEffectiveConfigs resolves the configurations a facility actually uses
// @Summary      List effective field configurations
// @Description  Returns tenant-level configurations overlaid by facility-specific ones when a facility_id is given.
// @Tags         field-configs
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id    query     string  true   "Tenant id"
// @Param        facility_id  query     string  false  "Facility id"
// @Param        stage        query     int     false  "Stage filter"
// @Success      200          {object}  response.Response{data=[]service.FieldConfigResponse}
// @Router       /api/field-configs/effective [get]
func (h *ConfigHandler) ListEffectiveConfigs(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "tenant_id is required"))
		return
	}

	stage, ok := parseStageQuery(c)
	if !ok {
		return
	}

	var facilityID *string
	if facility := c.Query("facility_id"); facility != "" {
		facilityID = &facility
	}

	cfgs, err := h.configService.ListWithInheritance(c.Request.Context(), tenantID, facilityID, stage)
	if err != nil {
		status, msg := configErrorStatus(err)
		c.JSON(status, response.Error(status, msg))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cfgs))
}

// CheckProtectedField reports whether a field name is reserved for evidence capture
// @Summary      Check protected field name
// @Tags         field-configs
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Field name"
// @Success      200   {object}  response.Response{data=object}
// @Router       /api/field-configs/protected/{name} [get]
func (h *ConfigHandler) CheckProtectedField(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"field_name": name,
		"protected":  h.configService.IsProtectedField(name),
	}))
}

func parseStageQuery(c *gin.Context) (*int, bool) {
	stageStr := c.Query("stage")
	if stageStr == "" {
		return nil, true
	}
	stage, err := strconv.Atoi(stageStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid stage"))
		return nil, false
	}
	return &stage, true
}
