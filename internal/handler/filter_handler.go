package handler

import (
	"net/http"

	"cockpit_go/internal/service"
	"cockpit_go/pkg/log"

	"github.com/gin-gonic/gin"
)

// FilterHandler 负责过滤器构建会话相关 HTTP 接口。
// 会话由服务端持有条件树，前端只通过接口做增删改查。
type FilterHandler struct {
	filterService    service.FilterService
	inventoryService service.InventoryService
}

func NewFilterHandler(filterService service.FilterService, inventoryService service.InventoryService) *FilterHandler {
	return &FilterHandler{
		filterService:    filterService,
		inventoryService: inventoryService,
	}
}

// AddConditionRequest 是向会话树追加条件的请求体。
type AddConditionRequest struct {
	TargetGroupID string `json:"target_group_id"`
	Field         string `json:"field" binding:"required"`
	Operator      string `json:"operator"`
	Value         string `json:"value"`
	Logic         string `json:"logic"`
}

// AddGroupRequest 是向会话树追加条件组的请求体。
type AddGroupRequest struct {
	TargetGroupID string `json:"target_group_id"`
	Logic         string `json:"logic"`
	Negate        bool   `json:"negate"`
}

// SelectTargetRequest 是设置插入目标组的请求体。
// GroupID 为空表示根。
type SelectTargetRequest struct {
	GroupID string `json:"group_id"`
}

// LoadInventoryRequest 是把已保存库存加载进会话的请求体。
type LoadInventoryRequest struct {
	InventoryID uint `json:"inventory_id" binding:"required"`
}

// CreateSession 创建新的过滤器构建会话。
func (h *FilterHandler) CreateSession(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	session, err := h.filterService.CreateSession(c.Request.Context(), user.Username)
	if err != nil {
		log.Warnf("FilterHandler.CreateSession: failed to create session: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Filter session created successfully",
		"data":    session,
	})
}

// GetSession 返回会话当前状态（条件树 + 插入目标）。
func (h *FilterHandler) GetSession(c *gin.Context) {
	session, err := h.filterService.GetSession(c.Request.Context(), c.Param("id"))
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
		"message": "Filter session retrieved successfully",
		"data":    session,
	})
}

// DeleteSession 删除会话。
func (h *FilterHandler) DeleteSession(c *gin.Context) {
	if err := h.filterService.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Filter session deleted successfully",
	})
}

// AddCondition 向会话树追加一个条件。
func (h *FilterHandler) AddCondition(c *gin.Context) {
	var req AddConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.filterService.AddCondition(c.Request.Context(), c.Param("id"),
		req.TargetGroupID, req.Field, req.Operator, req.Value, req.Logic)
	if err != nil {
		log.Warnf("FilterHandler.AddCondition: failed to add condition: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Condition added successfully",
		"data":    session,
	})
}

// AddGroup 向会话树追加一个空条件组。
func (h *FilterHandler) AddGroup(c *gin.Context) {
	var req AddGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.filterService.AddGroup(c.Request.Context(), c.Param("id"),
		req.TargetGroupID, req.Logic, req.Negate)
	if err != nil {
		log.Warnf("FilterHandler.AddGroup: failed to add group: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Group added successfully",
		"data":    session,
	})
}

// ToggleGroupLogic 切换指定组的内部组合逻辑（AND/OR）。
func (h *FilterHandler) ToggleGroupLogic(c *gin.Context) {
	session, err := h.filterService.ToggleGroupLogic(c.Request.Context(), c.Param("id"), c.Param("groupId"))
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
		"message": "Group logic toggled successfully",
		"data":    session,
	})
}

// RemoveItem 删除会话树中的条件或条件组。
func (h *FilterHandler) RemoveItem(c *gin.Context) {
	session, err := h.filterService.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
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
		"message": "Item removed successfully",
		"data":    session,
	})
}

// SelectTarget 设置后续插入的目标组。
func (h *FilterHandler) SelectTarget(c *gin.Context) {
	var req SelectTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.filterService.SelectTargetGroup(c.Request.Context(), c.Param("id"), req.GroupID)
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
		"message": "Target group selected successfully",
		"data":    session,
	})
}

// Flatten 把会话的条件树转换为后端操作列表。
func (h *FilterHandler) Flatten(c *gin.Context) {
	operations, err := h.filterService.Flatten(c.Request.Context(), c.Param("id"))
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
		"message": "Operations built successfully",
		"data": gin.H{
			"operations": operations,
		},
	})
}

// LoadInventory 把一个已保存库存的条件加载进会话，重建条件树。
// 可见性校验走库存服务：别人的私有库存在这里同样是 404。
func (h *FilterHandler) LoadInventory(c *gin.Context) {
	var req LoadInventoryRequest
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

	detail, err := h.inventoryService.Get(req.InventoryID, user.Username)
	if err != nil {
		log.Warnf("FilterHandler.LoadInventory: failed to load inventory %d: %v", req.InventoryID, err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	session, err := h.filterService.LoadConditions(c.Request.Context(), c.Param("id"), detail.Conditions)
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
		"message": "Inventory loaded into session successfully",
		"data":    session,
	})
}
