package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"meap/internal/middleware"
	"meap/internal/services"
	"meap/pkg/pagination"
	"meap/pkg/response"
)

type EntityHandler struct {
	entityService *services.EntityService
	auditService  *services.AuditService
}

func NewEntityHandler(entityService *services.EntityService, auditService *services.AuditService) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
		auditService:  auditService,
	}
}

type CreateEntityRequest struct {
	Name               string            `json:"name" binding:"required,min=2,max=255"`
	LegalName          string            `json:"legal_name"`
	EntityType         string            `json:"entity_type" binding:"required"`
	RegistrationNumber string            `json:"registration_number"`
	TaxID              string            `json:"tax_id"`
	Country            string            `json:"country"`
	Email              string            `json:"email" binding:"omitempty,email"`
	Phone              string            `json:"phone"`
	Website            string            `json:"website"`
	AddressLine1       string            `json:"address_line1"`
	AddressLine2       string            `json:"address_line2"`
	City               string            `json:"city"`
	State              string            `json:"state"`
	PostalCode         string            `json:"postal_code"`
	BaseCurrency       string            `json:"base_currency"`
	FiscalYearStart    *time.Time        `json:"fiscal_year_start"`
	Status             string            `json:"status"`
	SchemaName         string            `json:"schema_name"`
	SettingsJSON       datatypes.JSONMap `json:"settings_json"`
	Metadata           datatypes.JSONMap `json:"metadata"`
}

// Create 创建实体，创建者自动成为所有者
func (h *EntityHandler) Create(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			errorMsg := "参数验证失败"
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "Name":
					errorMsg = "实体名称不能为空，且长度在2-255个字符之间"
				case "EntityType":
					errorMsg = "实体类型不能为空"
				case "Email":
					errorMsg = "邮箱格式不正确"
				}
			}
			response.BadRequest(c, errorMsg)
			return
		}
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	userID := c.GetUint("user_id")

	entity, err := h.entityService.Create(&services.CreateEntityParams{
		Name:               req.Name,
		LegalName:          req.LegalName,
		EntityType:         req.EntityType,
		RegistrationNumber: req.RegistrationNumber,
		TaxID:              req.TaxID,
		Country:            req.Country,
		Email:              req.Email,
		Phone:              req.Phone,
		Website:            req.Website,
		AddressLine1:       req.AddressLine1,
		AddressLine2:       req.AddressLine2,
		City:               req.City,
		State:              req.State,
		PostalCode:         req.PostalCode,
		BaseCurrency:       req.BaseCurrency,
		FiscalYearStart:    req.FiscalYearStart,
		Status:             req.Status,
		SchemaName:         req.SchemaName,
		SettingsJSON:       req.SettingsJSON,
		Metadata:           req.Metadata,
	}, userID)
	if err != nil {
		response.HandleError(c, err, "创建实体失败")
		return
	}

	response.SuccessWithMessage(c, "实体创建成功", entity)
}

// List 列出当前用户可见的实体，超管可见全部
func (h *EntityHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	status := c.Query("status")

	userID := c.GetUint("user_id")
	isSuperuser := c.GetBool("is_superuser")

	entities, total, err := h.entityService.ListForUser(userID, isSuperuser, status, params.Page, params.PageSize)
	if err != nil {
		response.HandleError(c, err, "查询实体列表失败")
		return
	}

	response.SuccessWithPage(c, entities, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// Get 获取当前上下文实体详情
func (h *EntityHandler) Get(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}
	response.Success(c, entity)
}

type UpdateEntityRequest struct {
	LegalName    *string           `json:"legal_name"`
	Email        *string           `json:"email" binding:"omitempty,email"`
	Phone        *string           `json:"phone"`
	Website      *string           `json:"website"`
	AddressLine1 *string           `json:"address_line1"`
	AddressLine2 *string           `json:"address_line2"`
	City         *string           `json:"city"`
	State        *string           `json:"state"`
	Country      *string           `json:"country"`
	PostalCode   *string           `json:"postal_code"`
	BaseCurrency *string           `json:"base_currency"`
	SettingsJSON datatypes.JSONMap `json:"settings_json"`
	Metadata     datatypes.JSONMap `json:"metadata"`
}

// Update 更新当前上下文实体
func (h *EntityHandler) Update(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	var req UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	updated, err := h.entityService.Update(entity.ID, &services.UpdateEntityParams{
		LegalName:    req.LegalName,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		PostalCode:   req.PostalCode,
		BaseCurrency: req.BaseCurrency,
		SettingsJSON: req.SettingsJSON,
		Metadata:     req.Metadata,
	}, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "更新实体失败")
		return
	}

	response.SuccessWithMessage(c, "实体更新成功", updated)
}

// Activate 激活当前上下文实体
func (h *EntityHandler) Activate(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	updated, err := h.entityService.Activate(entity.ID, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "激活实体失败")
		return
	}
	response.SuccessWithMessage(c, "实体已激活", updated)
}

// Deactivate 停用当前上下文实体
func (h *EntityHandler) Deactivate(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	updated, err := h.entityService.Deactivate(entity.ID, c.GetUint("user_id"))
	if err != nil {
		response.HandleError(c, err, "停用实体失败")
		return
	}
	response.SuccessWithMessage(c, "实体已停用", updated)
}

// Delete 删除当前上下文实体
// keep_schema=true时保留数据库schema
func (h *EntityHandler) Delete(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	keepSchema := c.Query("keep_schema") == "true"
	if err := h.entityService.Delete(entity.ID, keepSchema, c.GetUint("user_id")); err != nil {
		response.HandleError(c, err, "删除实体失败")
		return
	}
	response.SuccessWithMessage(c, "实体已删除", nil)
}

// Statistics 实体统计信息
func (h *EntityHandler) Statistics(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	stats, err := h.entityService.GetStatistics(entity.ID)
	if err != nil {
		response.HandleError(c, err, "查询实体统计失败")
		return
	}
	response.Success(c, stats)
}

// Export 导出当前实体数据（备份或迁移用）
func (h *EntityHandler) Export(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	export, err := h.entityService.Export(entity.ID)
	if err != nil {
		response.HandleError(c, err, "导出实体数据失败")
		return
	}
	response.Success(c, export)
}

// AuditLogs 实体审计日志，支持按动作与时间范围过滤
func (h *EntityHandler) AuditLogs(c *gin.Context) {
	entity, ok := middleware.GetEntity(c)
	if !ok {
		response.BadRequest(c, "缺少实体上下文")
		return
	}

	params := pagination.ParsePageParams(c)
	action := c.Query("action")

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "from时间格式错误，需要RFC3339")
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "to时间格式错误，需要RFC3339")
			return
		}
		to = &t
	}

	logs, total, err := h.auditService.ListByEntity(entity.ID, action, from, to, params.Page, params.PageSize)
	if err != nil {
		response.HandleError(c, err, "查询审计日志失败")
		return
	}

	response.SuccessWithPage(c, logs, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

type CloneSchemaRequest struct {
	SourceEntityID string `json:"source_entity_id" binding:"required"`
	TargetSchema   string `json:"target_schema" binding:"required"`
}

// CloneSchema 复制实体schema结构与数据（仅超管）
func (h *EntityHandler) CloneSchema(c *gin.Context) {
	var req CloneSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	sourceID, err := uuid.Parse(req.SourceEntityID)
	if err != nil {
		response.BadRequest(c, "源实体ID格式错误")
		return
	}

	if err := h.entityService.CloneSchema(sourceID, req.TargetSchema); err != nil {
		response.HandleError(c, err, "复制schema失败")
		return
	}
	response.SuccessWithMessage(c, "schema复制完成", nil)
}
