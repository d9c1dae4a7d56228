package services

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"meap/internal/database"
	"meap/internal/models"
	"meap/internal/schema"
	"meap/pkg/errors"
	"meap/pkg/logger"
)

// EntityService 实体（租户）生命周期服务
// 创建/删除时显式编排schema、默认设置、所有者成员和审计的先后顺序，
// 不依赖隐式钩子
type EntityService struct {
	db    *gorm.DB
	log   *logrus.Logger
	audit *AuditService
}

// NewEntityService 创建实体服务
func NewEntityService() *EntityService {
	return NewEntityServiceWithDB(database.GetDB())
}

// NewEntityServiceWithDB 使用指定数据库实例创建（测试用）
func NewEntityServiceWithDB(db *gorm.DB) *EntityService {
	return &EntityService{
		db:    db,
		log:   logger.GetLogger(),
		audit: NewAuditServiceWithDB(db),
	}
}

// CreateEntityParams 创建实体的入参
type CreateEntityParams struct {
	Name               string
	LegalName          string
	EntityType         string
	RegistrationNumber string
	TaxID              string
	Country            string
	Email              string
	Phone              string
	Website            string
	AddressLine1       string
	AddressLine2       string
	City               string
	State              string
	PostalCode         string
	BaseCurrency       string
	FiscalYearStart    *time.Time
	Status             string
	SchemaName         string
	SettingsJSON       datatypes.JSONMap
	Metadata           datatypes.JSONMap
}

var (
	entityNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\,\&]+$`)
	usTaxIDPattern    = regexp.MustCompile(`^\d{2}-\d{7}$`)
)

// 支持的币种
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true,
	"INR": true, "AUD": true, "CAD": true, "CHF": true, "SEK": true,
	"NZD": true, "MXN": true, "SGD": true, "HKD": true, "NOK": true,
	"KRW": true,
}

// ValidateName 校验实体名称
func (s *EntityService) ValidateName(name string) error {
	runeCount := utf8.RuneCountInString(name)
	if runeCount < 2 {
		return errors.NewValidation("实体名称至少2个字符")
	}
	if runeCount > 255 {
		return errors.NewValidation("实体名称不能超过255个字符")
	}
	if !entityNamePattern.MatchString(name) {
		return errors.NewValidation("实体名称只能包含字母、数字、空格和基础标点")
	}
	return nil
}

// ValidateTaxID 校验税号格式（目前只有美国EIN有固定格式）
func (s *EntityService) ValidateTaxID(taxID, country string) error {
	if taxID == "" {
		return nil
	}
	if country == "US" && !usTaxIDPattern.MatchString(taxID) {
		return errors.NewValidation("美国税号格式必须为 XX-XXXXXXX")
	}
	return nil
}

// ValidateCurrency 校验币种代码
func (s *EntityService) ValidateCurrency(currency string) error {
	if currency == "" {
		return nil
	}
	if !validCurrencies[currency] {
		return errors.NewValidation("不支持的币种代码: " + currency)
	}
	return nil
}

func (s *EntityService) validateCreateParams(params *CreateEntityParams) error {
	if err := s.ValidateName(params.Name); err != nil {
		return err
	}
	if params.EntityType == "" || !models.IsValidEntityType(params.EntityType) {
		return errors.NewValidation("实体类型不合法")
	}
	if err := s.ValidateCurrency(params.BaseCurrency); err != nil {
		return err
	}
	if err := s.ValidateTaxID(params.TaxID, params.Country); err != nil {
		return err
	}
	if params.Status != "" {
		switch params.Status {
		case models.EntityStatusPending, models.EntityStatusActive,
			models.EntityStatusInactive, models.EntityStatusSuspended:
		default:
			return errors.NewValidation("实体状态不合法")
		}
	}
	return nil
}

// Create 创建实体
// 一个事务内依次完成：实体行 -> schema -> 默认设置 -> 所有者成员；
// schema创建失败时整体回滚，不会留下没有schema的实体行。
// 审计写入在提交之后，失败不回滚主操作
func (s *EntityService) Create(params *CreateEntityParams, creatorID uint) (*models.Entity, error) {
	if err := s.validateCreateParams(params); err != nil {
		return nil, err
	}

	schemaName := params.SchemaName
	if schemaName == "" {
		schemaName = schema.GenerateName(params.Name)
	}
	if err := schema.ValidateName(schemaName); err != nil {
		return nil, err
	}

	entity := &models.Entity{
		Name:            params.Name,
		LegalName:       params.LegalName,
		EntityType:      params.EntityType,
		SchemaName:      schemaName,
		Email:           params.Email,
		AddressLine1:    params.AddressLine1,
		City:            params.City,
		State:           params.State,
		Country:         params.Country,
		PostalCode:      params.PostalCode,
		FiscalYearStart: params.FiscalYearStart,
		IsActive:        true,
		CreatedByID:     &creatorID,
		SettingsJSON:    params.SettingsJSON,
		Metadata:        params.Metadata,
	}
	if params.RegistrationNumber != "" {
		entity.RegistrationNumber = &params.RegistrationNumber
	}
	if params.TaxID != "" {
		entity.TaxID = &params.TaxID
	}
	if params.Phone != "" {
		entity.Phone = &params.Phone
	}
	if params.Website != "" {
		entity.Website = &params.Website
	}
	if params.AddressLine2 != "" {
		entity.AddressLine2 = &params.AddressLine2
	}
	if params.BaseCurrency != "" {
		entity.BaseCurrency = params.BaseCurrency
	}
	if params.Status != "" {
		entity.Status = params.Status
	} else {
		entity.Status = models.EntityStatusPending
	}
	if entity.Status == models.EntityStatusActive {
		now := time.Now()
		entity.ActivatedAt = &now
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 实体行
		if err := tx.Create(entity).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.NewConflict("实体名称、注册号或税号已存在")
			}
			return err
		}

		// 2. schema（DDL与本事务同一连接，失败即回滚实体行）
		if _, err := schema.NewManager(tx).Create(schemaName); err != nil {
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				return err
			}
			return errors.NewInfrastructure("创建实体schema失败")
		}

		// 3. 默认设置
		settings := &models.EntitySettings{EntityID: entity.ID}
		if err := tx.Create(settings).Error; err != nil {
			return err
		}

		// 4. 创建者的所有者成员（BeforeSave会展开全部能力开关）
		membership := &models.EntityMembership{
			EntityID: entity.ID,
			UserID:   creatorID,
			Role:     models.RoleOwner,
			Status:   models.MembershipStatusActive,
		}
		if err := tx.Create(membership).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &creatorID,
		Action:      models.AuditActionCreated,
		Description: fmt.Sprintf("实体 %s 已创建", entity.Name),
	})

	return entity, nil
}

// GetByID 根据ID获取实体
func (s *EntityService) GetByID(id uuid.UUID) (*models.Entity, error) {
	var entity models.Entity
	err := s.db.First(&entity, "id = ?", id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("实体不存在")
		}
		return nil, err
	}
	return &entity, nil
}

// ListForUser 列出用户有活跃成员关系的实体；超级管理员可见全部
func (s *EntityService) ListForUser(userID uint, isSuperuser bool, status string, page, pageSize int) ([]*models.Entity, int64, error) {
	var entities []*models.Entity
	var total int64

	query := s.db.Model(&models.Entity{})
	if !isSuperuser {
		query = query.
			Joins("JOIN entity_memberships ON entity_memberships.entity_id = entities.id").
			Where("entity_memberships.user_id = ? AND entity_memberships.status = ?",
				userID, models.MembershipStatusActive)
	}
	if status != "" {
		query = query.Where("entities.status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("entities.created_at DESC").Offset(offset).Limit(pageSize).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}

	// 附带活跃成员数量
	for i := range entities {
		var count int64
		s.db.Model(&models.EntityMembership{}).
			Where("entity_id = ? AND status = ?", entities[i].ID, models.MembershipStatusActive).
			Count(&count)
		entities[i].MemberCount = int(count)
	}

	return entities, total, nil
}

// UpdateEntityParams 可更新的业务字段（schema名不可变更）
type UpdateEntityParams struct {
	LegalName    *string
	Email        *string
	Phone        *string
	Website      *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	State        *string
	Country      *string
	PostalCode   *string
	BaseCurrency *string
	SettingsJSON datatypes.JSONMap
	Metadata     datatypes.JSONMap
}

// Update 更新实体并记审计
func (s *EntityService) Update(id uuid.UUID, params *UpdateEntityParams, actorID uint) (*models.Entity, error) {
	entity, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	changes := datatypes.JSONMap{}
	apply := func(field string, target *string, value *string) {
		if value != nil && *value != *target {
			changes[field] = *value
			*target = *value
		}
	}
	applyPtr := func(field string, target **string, value *string) {
		if value != nil {
			changes[field] = *value
			*target = value
		}
	}

	apply("legal_name", &entity.LegalName, params.LegalName)
	apply("email", &entity.Email, params.Email)
	applyPtr("phone", &entity.Phone, params.Phone)
	applyPtr("website", &entity.Website, params.Website)
	apply("address_line1", &entity.AddressLine1, params.AddressLine1)
	applyPtr("address_line2", &entity.AddressLine2, params.AddressLine2)
	apply("city", &entity.City, params.City)
	apply("state", &entity.State, params.State)
	apply("country", &entity.Country, params.Country)
	apply("postal_code", &entity.PostalCode, params.PostalCode)

	if params.BaseCurrency != nil {
		if err := s.ValidateCurrency(*params.BaseCurrency); err != nil {
			return nil, err
		}
		changes["base_currency"] = *params.BaseCurrency
		entity.BaseCurrency = *params.BaseCurrency
	}
	if params.SettingsJSON != nil {
		changes["settings_json"] = "updated"
		entity.SettingsJSON = params.SettingsJSON
	}
	if params.Metadata != nil {
		changes["metadata"] = "updated"
		entity.Metadata = params.Metadata
	}

	if err := s.db.Save(entity).Error; err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &actorID,
		Action:      models.AuditActionUpdated,
		Description: fmt.Sprintf("实体 %s 已更新", entity.Name),
		Changes:     changes,
	})

	return entity, nil
}

// Activate 激活实体（幂等）
// activated_at 只在首次激活时写入
func (s *EntityService) Activate(id uuid.UUID, actorID uint) (*models.Entity, error) {
	entity, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if entity.Status == models.EntityStatusActive && entity.IsActive {
		return entity, nil
	}

	entity.Status = models.EntityStatusActive
	entity.IsActive = true
	if entity.ActivatedAt == nil {
		now := time.Now()
		entity.ActivatedAt = &now
	}

	if err := s.db.Save(entity).Error; err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &actorID,
		Action:      models.AuditActionActivated,
		Description: fmt.Sprintf("实体 %s 已激活", entity.Name),
	})

	return entity, nil
}

// Deactivate 停用实体（幂等）
func (s *EntityService) Deactivate(id uuid.UUID, actorID uint) (*models.Entity, error) {
	entity, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if entity.Status == models.EntityStatusInactive && !entity.IsActive {
		return entity, nil
	}

	entity.Status = models.EntityStatusInactive
	entity.IsActive = false

	if err := s.db.Save(entity).Error; err != nil {
		return nil, err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &actorID,
		Action:      models.AuditActionDeactivated,
		Description: fmt.Sprintf("实体 %s 已停用", entity.Name),
	})

	return entity, nil
}

// Delete 删除实体
// 先记删除前审计（尽力而为），删除实体行（级联成员/设置/审计），
// 最后删schema：drop失败只记日志，不阻塞删除结果
func (s *EntityService) Delete(id uuid.UUID, keepSchema bool, actorID uint) error {
	entity, err := s.GetByID(id)
	if err != nil {
		return err
	}

	s.audit.RecordQuietly(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &actorID,
		Action:      models.AuditActionDeleted,
		Description: fmt.Sprintf("实体 %s 即将删除", entity.Name),
	})

	if err := s.db.Delete(&models.Entity{}, "id = ?", id).Error; err != nil {
		return err
	}

	if !keepSchema {
		if err := schema.NewManager(s.db).Drop(entity.SchemaName, true); err != nil {
			s.log.WithFields(logrus.Fields{
				"entity_id":   entity.ID,
				"schema_name": entity.SchemaName,
			}).Errorf("删除实体schema失败（不影响实体删除）: %v", err)
		}
	}

	return nil
}

// CloneSchema 把实体schema克隆到目标schema，用于环境复制
// 只开放给超级管理员入口
func (s *EntityService) CloneSchema(sourceEntityID uuid.UUID, targetSchema string) error {
	entity, err := s.GetByID(sourceEntityID)
	if err != nil {
		return err
	}
	return schema.NewManager(s.db).Clone(entity.SchemaName, targetSchema)
}

// EntityStatistics 实体统计信息
type EntityStatistics struct {
	TotalMembers       int64      `json:"total_members"`
	ActiveMembers      int64      `json:"active_members"`
	PendingInvitations int64      `json:"pending_invitations"`
	SuspendedMembers   int64      `json:"suspended_members"`
	Owners             int64      `json:"owners"`
	TotalAuditLogs     int64      `json:"total_audit_logs"`
	SchemaName         string     `json:"schema_name"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	ActivatedAt        *time.Time `json:"activated_at"`
	LastActivity       *time.Time `json:"last_activity"`
}

// GetStatistics 获取实体统计
func (s *EntityService) GetStatistics(id uuid.UUID) (*EntityStatistics, error) {
	entity, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	stats := &EntityStatistics{
		SchemaName:  entity.SchemaName,
		IsActive:    entity.IsActive,
		CreatedAt:   entity.CreatedAt,
		ActivatedAt: entity.ActivatedAt,
	}

	memberships := s.db.Model(&models.EntityMembership{}).Where("entity_id = ?", id)
	memberships.Count(&stats.TotalMembers)

	s.db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND status = ?", id, models.MembershipStatusActive).
		Count(&stats.ActiveMembers)
	s.db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND status = ?", id, models.MembershipStatusInvited).
		Count(&stats.PendingInvitations)
	s.db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND status = ?", id, models.MembershipStatusSuspended).
		Count(&stats.SuspendedMembers)
	s.db.Model(&models.EntityMembership{}).
		Where("entity_id = ? AND role = ?", id, models.RoleOwner).
		Count(&stats.Owners)

	s.db.Model(&models.EntityAuditLog{}).Where("entity_id = ?", id).Count(&stats.TotalAuditLogs)

	var last models.EntityAuditLog
	if err := s.db.Where("entity_id = ?", id).Order("created_at DESC").First(&last).Error; err == nil {
		stats.LastActivity = &last.CreatedAt
	}

	return stats, nil
}

// ExportedMembership 导出数据中的成员条目
type ExportedMembership struct {
	UserEmail   string          `json:"user_email"`
	Role        string          `json:"role"`
	Status      string          `json:"status"`
	Permissions map[string]bool `json:"permissions"`
}

// EntityExport 实体数据快照，用于备份或迁移
type EntityExport struct {
	Entity      *models.Entity         `json:"entity"`
	Settings    *models.EntitySettings `json:"settings,omitempty"`
	Memberships []ExportedMembership   `json:"memberships"`
	ExportedAt  time.Time              `json:"exported_at"`
}

// Export 导出实体及其成员、配置
func (s *EntityService) Export(id uuid.UUID) (*EntityExport, error) {
	entity, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	export := &EntityExport{
		Entity:      entity,
		Memberships: []ExportedMembership{},
		ExportedAt:  time.Now(),
	}

	var settings models.EntitySettings
	if err := s.db.Where("entity_id = ?", id).First(&settings).Error; err == nil {
		export.Settings = &settings
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var memberships []models.EntityMembership
	if err := s.db.Where("entity_id = ?", id).Preload("User").
		Order("created_at ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}
	for _, m := range memberships {
		export.Memberships = append(export.Memberships, ExportedMembership{
			UserEmail: m.User.Email,
			Role:      m.Role,
			Status:    m.Status,
			Permissions: map[string]bool{
				"can_manage_users":    m.CanManageUsers,
				"can_manage_settings": m.CanManageSettings,
				"can_view_reports":    m.CanViewReports,
				"can_create_entries":  m.CanCreateEntries,
				"can_approve_entries": m.CanApproveEntries,
			},
		})
	}

	return export, nil
}
