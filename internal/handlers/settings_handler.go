package handlers

import (
	"github.com/gin-gonic/gin"

	"meap/internal/middleware"
	"meap/internal/services"
	"meap/pkg/response"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// Get 获取当前实体配置
func (h *SettingsHandler) Get(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	settings, err := h.settingsService.GetByEntityID(entity.ID)
	if err != nil {
		response.HandleError(c, err, "查询实体配置失败")
		return
	}
	response.Success(c, settings)
}

// Update 更新当前实体配置
func (h *SettingsHandler) Update(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	var req services.UpdateSettingsParams
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	settings, err := h.settingsService.Update(entity.ID, &req, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "更新实体配置失败")
		return
	}
	response.SuccessWithMessage(c, "实体配置已更新", settings)
}
