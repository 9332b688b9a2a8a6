package handler

import (
	"net/http"
	"strconv"
	"strings"

	"cockpit_go/internal/model"
	"cockpit_go/internal/service"
	"cockpit_go/pkg/log"

	"github.com/gin-gonic/gin"
)

// InventoryHandler 负责保存库存（命名过滤条件集合）和库存预览接口。
type InventoryHandler struct {
	inventoryService service.InventoryService
	previewService   service.PreviewService
}

func NewInventoryHandler(inventoryService service.InventoryService, previewService service.PreviewService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		previewService:   previewService,
	}
}

// CreateInventoryRequest 是创建库存的请求体。
type CreateInventoryRequest struct {
	Name             string                   `json:"name" binding:"required"`
	Description      string                   `json:"description"`
	Conditions       []model.LogicalCondition `json:"conditions" binding:"required"`
	TemplateCategory string                   `json:"template_category"`
	TemplateName     string                   `json:"template_name"`
	Scope            string                   `json:"scope"`
}

// UpdateInventoryRequest 是更新库存的请求体。
// 指针字段用于区分"没传"和"显式传值"。
type UpdateInventoryRequest struct {
	Name             *string                   `json:"name"`
	Description      *string                   `json:"description"`
	Conditions       *[]model.LogicalCondition `json:"conditions"`
	TemplateCategory *string                   `json:"template_category"`
	TemplateName     *string                   `json:"template_name"`
	Scope            *string                   `json:"scope"`
}

// PreviewRequest 是库存预览请求体。
// 两种形态二选一：直接给操作列表，或给扁平条件（由服务端转换）。
type PreviewRequest struct {
	Operations []model.LogicalOperation `json:"operations"`
	Conditions []model.LogicalCondition `json:"conditions"`
}

// Create 创建库存。
func (h *InventoryHandler) Create(c *gin.Context) {
	var req CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	detail, err := h.inventoryService.Create(service.CreateInventoryInput{
		Name:             req.Name,
		Description:      req.Description,
		Conditions:       req.Conditions,
		TemplateCategory: req.TemplateCategory,
		TemplateName:     req.TemplateName,
		Scope:            req.Scope,
	}, user.Username)
	if err != nil {
		log.Warnf("InventoryHandler.Create: failed to create inventory: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Inventory created successfully",
		"data":    detail,
	})
}

// List 返回当前用户可见的库存列表。
// query 参数：scope 过滤范围，include_inactive=true 时包含已软删的记录。
func (h *InventoryHandler) List(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	scope := strings.TrimSpace(c.Query("scope"))
	activeOnly := !strings.EqualFold(c.Query("include_inactive"), "true")

	details, err := h.inventoryService.List(user.Username, activeOnly, scope)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Inventories retrieved successfully",
		"data":    details,
	})
}

// Get 返回单个库存详情。
func (h *InventoryHandler) Get(c *gin.Context) {
	id, ok := parseInventoryID(c)
	if !ok {
		return
	}
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	detail, err := h.inventoryService.Get(id, user.Username)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Inventory retrieved successfully",
		"data":    detail,
	})
}

// Update 更新库存。
func (h *InventoryHandler) Update(c *gin.Context) {
	id, ok := parseInventoryID(c)
	if !ok {
		return
	}

	var req UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	detail, err := h.inventoryService.Update(id, service.UpdateInventoryInput{
		Name:             req.Name,
		Description:      req.Description,
		Conditions:       req.Conditions,
		TemplateCategory: req.TemplateCategory,
		TemplateName:     req.TemplateName,
		Scope:            req.Scope,
	}, user.Username)
	if err != nil {
		log.Warnf("InventoryHandler.Update: failed to update inventory %d: %v", id, err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Inventory updated successfully",
		"data":    detail,
	})
}

// Delete 删除库存。默认软删除，query 参数 hard=true 时硬删除。
func (h *InventoryHandler) Delete(c *gin.Context) {
	id, ok := parseInventoryID(c)
	if !ok {
		return
	}
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	hard := strings.EqualFold(c.Query("hard"), "true")
	if err := h.inventoryService.Delete(id, user.Username, hard); err != nil {
		log.Warnf("InventoryHandler.Delete: failed to delete inventory %d: %v", id, err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Inventory deleted successfully",
	})
}

// Search 在可见库存的名称/描述上做子串搜索。
func (h *InventoryHandler) Search(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Query parameter 'q' is required",
		})
		return
	}

	details, err := h.inventoryService.Search(query, user.Username, true)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Inventories retrieved successfully",
		"data":    details,
	})
}

// Health 返回库存存储健康状态。
func (h *InventoryHandler) Health(c *gin.Context) {
	health := h.inventoryService.Health()

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": "Inventory health",
		"data":    health,
	})
}

// Preview 执行操作列表并返回命中的设备。
// 请求给的是扁平条件时先转换成操作列表再执行。
func (h *InventoryHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	ops := req.Operations
	if len(ops) == 0 && len(req.Conditions) > 0 {
		ops = service.BuildOperationsFromConditions(req.Conditions)
	}

	devices, executed, err := h.previewService.Preview(c.Request.Context(), ops)
	if err != nil {
		log.Warnf("InventoryHandler.Preview: preview failed: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Preview completed successfully",
		"data": gin.H{
			"devices":             devices,
			"total_count":         len(devices),
			"operations_executed": executed,
		},
	})
}

// FieldOptions 返回过滤器构建器可用的字段/运算符/逻辑选项。
func (h *InventoryHandler) FieldOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Field options retrieved successfully",
		"data":    h.previewService.FieldOptions(),
	})
}

// parseInventoryID 解析路径参数里的库存 ID，非法时直接写 400。
func parseInventoryID(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid inventory ID",
		})
		return 0, false
	}
	return uint(id64), true
}
