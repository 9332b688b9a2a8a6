package handler

import (
	"net/http"
	"strings"

	"cockpit_go/internal/service"
	"cockpit_go/pkg/log"

	"github.com/gin-gonic/gin"
)

// LocationHandler 负责位置层级查询接口。
type LocationHandler struct {
	locationService service.LocationService
}

func NewLocationHandler(locationService service.LocationService) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

// List 返回带层级路径、已排序的位置列表。
// query 参数 refresh=true 时绕过缓存强制重新拉取。
func (h *LocationHandler) List(c *gin.Context) {
	refresh := strings.EqualFold(c.Query("refresh"), "true") || c.Query("refresh") == "1"

	locations, err := h.locationService.GetHierarchy(c.Request.Context(), refresh)
	if err != nil {
		log.Warnf("LocationHandler.List: failed to get location hierarchy: %v", err)
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Locations retrieved successfully",
		"data": gin.H{
			"locations":   locations,
			"total_count": len(locations),
		},
	})
}
