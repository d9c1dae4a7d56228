package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entity 实体（租户）模型 - 每个实体拥有一个独立的PostgreSQL schema
type Entity struct {
	UUIDModel

	// 基本信息
	Name       string `json:"name" gorm:"unique;not null;size:255"`
	LegalName  string `json:"legal_name" gorm:"not null;size:255"`
	EntityType string `json:"entity_type" gorm:"not null;size:50;index"`

	// 注册信息
	RegistrationNumber *string `json:"registration_number" gorm:"unique;size:100"`
	TaxID              *string `json:"tax_id" gorm:"unique;size:50"`

	// Schema信息：创建时派生一次，之后不可变更
	SchemaName string `json:"schema_name" gorm:"unique;not null;size:63;index"`

	// 联系信息
	Email   string  `json:"email" gorm:"size:200"`
	Phone   *string `json:"phone" gorm:"size:20"`
	Website *string `json:"website" gorm:"size:255"`

	// 地址
	AddressLine1 string  `json:"address_line1" gorm:"size:255"`
	AddressLine2 *string `json:"address_line2" gorm:"size:255"`
	City         string  `json:"city" gorm:"size:100"`
	State        string  `json:"state" gorm:"size:100"`
	Country      string  `json:"country" gorm:"size:100"`
	PostalCode   string  `json:"postal_code" gorm:"size:20"`

	// 财务设置
	BaseCurrency    string     `json:"base_currency" gorm:"default:'USD';size:3"`
	FiscalYearStart *time.Time `json:"fiscal_year_start"`

	// 状态
	Status   string `json:"status" gorm:"default:'pending';size:20;index:idx_entities_status_active"`
	IsActive bool   `json:"is_active" gorm:"default:true;index:idx_entities_status_active"`

	// 归属
	CreatedByID *uint `json:"created_by" gorm:"index"`
	CreatedBy   *User `json:"created_by_user,omitempty" gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`

	// 元数据
	SettingsJSON datatypes.JSONMap `json:"settings_json" gorm:"type:jsonb"`
	Metadata     datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`

	ActivatedAt *time.Time `json:"activated_at"`

	// 列表接口附带，不落库
	MemberCount int `json:"member_count" gorm:"-"`
}

// TableName 表名
func (e *Entity) TableName() string {
	return "entities"
}

// 实体类型常量
const (
	EntityTypeCompany            = "company"
	EntityTypePartnership        = "partnership"
	EntityTypeSoleProprietorship = "sole_proprietorship"
	EntityTypeNonprofit          = "nonprofit"
	EntityTypeGovernment         = "government"
)

// 实体状态常量
const (
	EntityStatusPending   = "pending"
	EntityStatusActive    = "active"
	EntityStatusInactive  = "inactive"
	EntityStatusSuspended = "suspended"
)

// ValidEntityTypes 合法的实体类型集合
var ValidEntityTypes = []string{
	EntityTypeCompany,
	EntityTypePartnership,
	EntityTypeSoleProprietorship,
	EntityTypeNonprofit,
	EntityTypeGovernment,
}

// IsValidEntityType 检查实体类型是否合法
func IsValidEntityType(entityType string) bool {
	for _, t := range ValidEntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}
